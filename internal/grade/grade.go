// Package grade maps fabric grades to the price column they are sold from.
package grade

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownGrade = errors.New("unknown grade")

type Grade string

const (
	G1000   Grade = "G1000"
	G2000   Grade = "G2000"
	G3000   Grade = "G3000"
	G4000   Grade = "G4000"
	G5000   Grade = "G5000"
	G6000   Grade = "G6000"
	G7000   Grade = "G7000"
	Leather Grade = "LEATHER"
)

// All lists the grades from cheapest to most expensive.
var All = []Grade{G1000, G2000, G3000, G4000, G5000, G6000, G7000, Leather}

func (g Grade) Valid() bool {
	return g.Rank() > 0
}

// Rank is 1 for G1000 through 8 for LEATHER, 0 for anything else.
func (g Grade) Rank() int {
	for i, v := range All {
		if v == g {
			return i + 1
		}
	}
	return 0
}

// Parse accepts "g2000", "G2000", "2000" and "leather" in any case.
func Parse(s string) (Grade, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "" {
		return "", fmt.Errorf("empty grade: %w", ErrUnknownGrade)
	}
	if v[0] >= '0' && v[0] <= '9' {
		v = "G" + v
	}
	g := Grade(v)
	if !g.Valid() {
		return "", fmt.Errorf("%q: %w", s, ErrUnknownGrade)
	}
	return g, nil
}

type Column int

const (
	ColumnUnknown Column = iota
	ColumnG1000
	ColumnG2000
	ColumnG3000
	ColumnG4000
	ColumnG5000
	ColumnG6000
	ColumnG7000
	ColumnLeather
)

// Columns is the price column order of a row, cheapest first.
var Columns = []Column{
	ColumnG1000, ColumnG2000, ColumnG3000, ColumnG4000,
	ColumnG5000, ColumnG6000, ColumnG7000, ColumnLeather,
}

var fields = map[Column]string{
	ColumnG1000:   "price_g1000",
	ColumnG2000:   "price_g2000",
	ColumnG3000:   "price_g3000",
	ColumnG4000:   "price_g4000",
	ColumnG5000:   "price_g5000",
	ColumnG6000:   "price_g6000",
	ColumnG7000:   "price_g7000",
	ColumnLeather: "price_leather",
}

// Resolve never fails: grades outside the known set land on ColumnUnknown,
// which has no price.
func Resolve(g Grade) Column {
	return Column(g.Rank())
}

func (c Column) Field() string {
	return fields[c]
}

func (c Column) Grade() Grade {
	if c < ColumnG1000 || c > ColumnLeather {
		return ""
	}
	return All[int(c)-1]
}

func (c Column) String() string {
	if g := c.Grade(); g != "" {
		return string(g)
	}
	return "UNKNOWN"
}
