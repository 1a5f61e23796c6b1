package db

import (
	"context"
	"embed"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/migration"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate brings the ekstern_varsling schema up to date.
func Migrate(ctx context.Context, conn *pgxpool.Pool) error {
	return migration.Up(ctx, conn, migrations, "migrations")
}
