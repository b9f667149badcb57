package config

import (
	"fmt"
	"log"

	pkgconfig "github.com/BRRODORTEGA/SOFA-sub000/pkg/config"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	MigrateAuto  = "auto"
	MigrateGoose = "goose"
	MigrateNone  = "none"
)

// Load reads the storefront configuration and exits when a required setting
// is missing or malformed.
func Load() pkgconfig.Config {
	cfg := pkgconfig.Load()

	pkgconfig.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	pkgconfig.MustOneOf(cfg.DBDriver, "DB_DRIVER", DriverPostgres, DriverSQLite)
	pkgconfig.MustOneOf(cfg.Migrations, "MIGRATIONS", MigrateAuto, MigrateGoose, MigrateNone)
	if cfg.DBDriver == DriverPostgres {
		pkgconfig.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	}
	if err := Check(cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// Check validates settings that depend on each other.
func Check(cfg pkgconfig.Config) error {
	if cfg.Migrations == MigrateGoose && cfg.DBDriver != DriverPostgres {
		return fmt.Errorf("MIGRATIONS=%s needs DB_DRIVER=%s", MigrateGoose, DriverPostgres)
	}
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT out of range: %d", cfg.ServerPort)
	}
	return nil
}
