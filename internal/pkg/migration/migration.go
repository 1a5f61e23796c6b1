// Package migration applies embedded SQL migrations to PostgreSQL using
// golang-migrate. Files follow the 000001_description.up.sql naming, and
// applied versions are tracked in schema_migrations, so Up is safe to call on
// every startup.
package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Up applies every migration in dir that has not been applied yet. Nothing to
// apply is not an error.
func Up(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, dir string) error {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("migration: open source: %w", err)
	}

	driver, err := pgxmigrate.WithInstance(stdlib.OpenDBFromPool(pool), &pgxmigrate.Config{})
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("migration: open database: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("migration: new migrator: %w", err)
	}
	defer func() {
		if sErr, dErr := m.Close(); sErr != nil || dErr != nil {
			slog.WarnContext(ctx, "failed to close migrator", "source_error", sErr, "database_error", dErr)
		}
	}()

	stop := context.AfterFunc(ctx, func() { m.GracefulStop <- true })
	defer stop()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration: up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("migration: version: %w", err)
	}
	slog.InfoContext(ctx, "database migrated", "version", version, "dirty", dirty)

	return nil
}
