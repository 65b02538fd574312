// Package testutil holds helpers shared by repository and service tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/HanjuJo/Latteh/pkg/database"
)

// NewDB opens a throwaway sqlite database for the duration of the test.
// Callers create the tables they need with the repos' EnsureTable.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()
	sqlDB, err := database.Connect(database.Config{
		Driver:  database.DriverSQLite,
		DSN:     filepath.Join(t.TempDir(), "latteh.db") + "?_pragma=busy_timeout(5000)",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db := sqlx.NewDb(sqlDB, database.DriverSQLite)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// InsertUser seeds a minimal users row with the given available balance.
// The users table must already exist.
func InsertUser(t testing.TB, db *sqlx.DB, id string, available int64) {
	t.Helper()
	now := time.Now().UTC()
	_, err := db.Exec(db.Rebind(`INSERT INTO users (id, email, name, nickname, password_hash, user_type,
		points_total, points_available, created_at, updated_at)
	  VALUES (?, ?, ?, ?, 'x', '경험 탐색자', ?, ?, ?, ?)`),
		id, id+"@example.com", id, id, available, available, now, now)
	if err != nil {
		t.Fatalf("insert user %s: %v", id, err)
	}
}
