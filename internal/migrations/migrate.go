// Package migrations brings a database schema up to date, either from the
// embedded goose scripts or, for throwaway databases, from the gorm models.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
)

const postgresDialect = "postgres"

//go:embed sql/*.sql
var scripts embed.FS

// Up runs all pending SQL migrations against the postgres database at dsn.
func Up(ctx context.Context, dsn string) error {
	db, err := sql.Open(postgresDialect, dsn)
	if err != nil {
		return fmt.Errorf("open postgres for migrations: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(scripts)
	if err := goose.SetDialect(postgresDialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "sql"); err != nil {
		return fmt.Errorf("run goose up migrations: %w", err)
	}
	return nil
}

// Auto creates or alters tables straight from the models.
func Auto(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
