package testutil

import (
	"context"
	"database/sql"
	"testing"

	"taskboard/api/internal/store"
)

// NewTestDB opens an in-memory sqlite database with all migrations applied.
// The database is closed when the test completes.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	database, _, err := store.Open(ctx, "sqlite://:memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})

	migrations, err := store.Migrations("")
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}
	if err := store.ApplyMigrations(ctx, database, store.DialectSQLite, migrations); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return database
}

// NewTestStore returns a SQLStore over a fresh test database.
func NewTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	return store.NewSQLStore(NewTestDB(t), store.DialectSQLite)
}
