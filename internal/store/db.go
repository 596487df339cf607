package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect names the SQL flavour a store speaks. Queries are written with
// '?' placeholders and rebound for PostgreSQL.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const sqliteScheme = "sqlite://"

// Open connects to the database named by databaseURL. postgres:// and
// postgresql:// URLs use pgx; sqlite://<path> and sqlite://:memory: use the
// embedded sqlite driver.
func Open(ctx context.Context, databaseURL string) (*sql.DB, Dialect, error) {
	if strings.HasPrefix(databaseURL, sqliteScheme) {
		db, err := openSQLite(ctx, strings.TrimPrefix(databaseURL, sqliteScheme))
		return db, DialectSQLite, err
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("ping db: %w", err)
	}
	return db, DialectPostgres, nil
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("open db: sqlite path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection: sqlite serializes writers anyway, and an in-memory
	// database lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)

	pragmas := []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return db, nil
}

// rebind rewrites '?' placeholders as $1..$n for PostgreSQL.
func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
