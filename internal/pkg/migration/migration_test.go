package migration

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5/pgxpool"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("migration"),
		tcpostgres.WithUsername("migration"),
		tcpostgres.WithPassword("migration"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

func TestUp(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	fsys := fstest.MapFS{
		"migrations/000001_create_table.up.sql": {Data: []byte("CREATE TABLE item (id TEXT PRIMARY KEY);")},
		"migrations/000002_add_column.up.sql":   {Data: []byte("ALTER TABLE item ADD COLUMN name TEXT;\nCREATE INDEX item_name_idx ON item (name);")},
	}

	if err := Up(ctx, pool, fsys, "migrations"); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	// nothing left to apply
	if err := Up(ctx, pool, fsys, "migrations"); err != nil {
		t.Fatalf("second Up() error = %v", err)
	}
	// the pool stays usable after the migrator is closed
	if _, err := pool.Exec(ctx, "INSERT INTO item (id, name) VALUES ('a', 'b')"); err != nil {
		t.Fatalf("insert after migrate: %v", err)
	}

	var version int64
	var dirty bool
	if err := pool.QueryRow(ctx, "SELECT version, dirty FROM schema_migrations").Scan(&version, &dirty); err != nil {
		t.Fatalf("read schema_migrations: %v", err)
	}
	if version != 2 || dirty {
		t.Fatalf("version = %d dirty = %v, want 2 clean", version, dirty)
	}
}

func TestUpFailingMigration(t *testing.T) {
	pool := newTestPool(t)

	fsys := fstest.MapFS{
		"migrations/000001_broken.up.sql": {Data: []byte("CREATE TABLE;")},
	}

	if err := Up(context.Background(), pool, fsys, "migrations"); err == nil {
		t.Fatal("expected error for invalid SQL")
	}
}

func TestUpMissingDir(t *testing.T) {
	if err := Up(context.Background(), nil, fstest.MapFS{}, "migrations"); err == nil {
		t.Fatal("expected error for missing migrations dir")
	}
}
