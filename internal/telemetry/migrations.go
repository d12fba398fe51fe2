package telemetry

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// runMigrations brings db's schema up to date using the embedded goose
// migration set, the same embedded-FS + goose.Up shape
// NeboLoop-nebo/internal/db/sqlite.go delegates to its own migrations
// package for.
func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("telemetry: set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("telemetry: run migrations: %w", err)
	}
	return nil
}
