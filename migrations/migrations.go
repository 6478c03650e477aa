// Package migrations holds the SQL schema and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var EmbedMigrations embed.FS

const dir = "sql"

// Dialect maps a persistence driver name onto a goose dialect
func Dialect(driver string) string {
	switch driver {
	case "postgres", "pgx":
		return "postgres"
	default:
		return "sqlite3"
	}
}

// Up executes all pending migrations
func Up(ctx context.Context, db *sql.DB, dialect string) error {
	if err := prepare(dialect); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Down rolls back the latest migration
func Down(ctx context.Context, db *sql.DB, dialect string) error {
	if err := prepare(dialect); err != nil {
		return err
	}
	if err := goose.DownContext(ctx, db, dir); err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

// Version returns the current schema version
func Version(ctx context.Context, db *sql.DB, dialect string) (int64, error) {
	if err := prepare(dialect); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("goose version: %w", err)
	}
	return v, nil
}

func prepare(dialect string) error {
	goose.SetBaseFS(EmbedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}
	return nil
}
