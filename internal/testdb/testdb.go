// Package testdb provides utilities for database integration testing.
// It only depends on the embedded migrations and standard database
// packages, not on specific store implementations.
package testdb

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"

	"github.com/meetflow/meetflow-api/migrations"
)

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 5 * time.Second

var (
	dbOnce sync.Once
	db     *sql.DB
	dbErr  error
)

// IsIntegrationTestEnvironment returns true if a test database URL is
// configured, indicating that integration tests can run.
func IsIntegrationTestEnvironment() bool {
	return GetTestDatabaseURL() != ""
}

// GetTestDatabaseURL returns the database URL for tests.
// It checks DATABASE_URL and MEETFLOW_TEST_DB_URL environment variables
// in that order, returning the first non-empty value.
func GetTestDatabaseURL() string {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return dbURL
	}
	return os.Getenv("MEETFLOW_TEST_DB_URL")
}

// GetTestDBWithT returns a migrated database connection shared across the
// test binary, skipping the test when no test database is configured.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skip("skipping integration test: DATABASE_URL not set")
	}

	dbOnce.Do(func() {
		db, dbErr = openAndMigrate(dbURL)
	})
	require.NoError(t, dbErr, "failed to set up test database")

	return db
}

// WithTx runs the provided function within a database transaction that is
// always rolled back, so tests can write freely without affecting each
// other and still run in parallel.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err, "failed to begin test transaction")

	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			t.Errorf("failed to roll back test transaction: %v", err)
		}
	}()

	fn(t, tx)
}

// openAndMigrate opens a connection pool and applies the embedded
// migrations so the schema matches the current code.
func openAndMigrate(dbURL string) (*sql.DB, error) {
	conn, err := sql.Open("pgx", dbURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := goose.Up(conn, "."); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}
