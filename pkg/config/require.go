package config

import (
	"log"
	"slices"
)

// fatalf ends the process; tests replace it.
var fatalf = log.Fatalf

func MustNonEmpty(value, envName string) {
	if value == "" {
		fatalf("missing required env %s", envName)
	}
}

func MustNonEmptyBytes(value []byte, envName string) {
	if len(value) == 0 {
		fatalf("missing required env %s", envName)
	}
}

// MustOneOf stops the process unless value is one of allowed.
func MustOneOf(value, envName string, allowed ...string) {
	if !slices.Contains(allowed, value) {
		fatalf("env %s=%q, want one of %v", envName, value, allowed)
	}
}
