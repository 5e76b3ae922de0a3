package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/nikhilbhatia/commitcanvas/internal/repository/sqlite"
	"github.com/nikhilbhatia/commitcanvas/migrations"
)

// NewTestDB creates an in-memory SQLite database with the real schema
// applied. The database is closed when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// A single connection keeps the in-memory database alive across
	// queries.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	if err := sqlite.RunMigrations(db, migrations.Files); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}
