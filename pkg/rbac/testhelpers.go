package rbac

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// NewTestLogger returns a discarding logger and a hook that records its entries
func NewTestLogger() (*logrus.Logger, *test.Hook) {
	return test.NewNullLogger()
}

// OpenTestStore opens a migrated in-memory SQLite store that is closed when the test ends
func OpenTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	// One connection keeps the in-memory database alive between queries
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	logger, _ := NewTestLogger()
	if err := RunMigrations(context.Background(), db, logger); err != nil {
		t.Fatalf("Failed to migrate sqlite: %v", err)
	}

	return NewStore(db), db
}

// SkipIfNoDatabase skips the test if TEST_POSTGRES_PRIMARY environment variable is not set
func SkipIfNoDatabase(t *testing.T) string {
	t.Helper()

	dbURL := os.Getenv("TEST_POSTGRES_PRIMARY")
	if dbURL == "" {
		t.Skip("Skipping test: TEST_POSTGRES_PRIMARY environment variable not set (database not available)")
	}

	return dbURL
}

// RequireDatabase connects to the PostgreSQL test database or skips the test
func RequireDatabase(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := SkipIfNoDatabase(t)

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Skipf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("Database not reachable: %v", err)
	}

	return db
}
