package repository

import (
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// setupTestDB creates a migrated SQLite database backed by a temp file.
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	f, err := os.CreateTemp("", "anonbox-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp db: %v", err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := NewSQLiteDB(f.Name(), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	MigrateDB(db, "../../migrations", zap.NewNop())
	return db
}
