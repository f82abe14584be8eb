package store

import (
	"context"
	"database/sql"
	"testing"
)

// createTestDatabase creates a baseline sqlite database in a temp dir and
// returns the dialect together with an open handle.
func createTestDatabase(t *testing.T, name string) (*SQLite, *sql.DB) {
	t.Helper()
	ctx := context.Background()
	d := NewSQLite(t.TempDir())
	if err := d.CreateDatabase(ctx, name); err != nil {
		t.Fatalf("CreateDatabase() failed: %v", err)
	}
	db, err := d.Open(ctx, name)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	for _, stmt := range d.Baseline() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("baseline statement failed: %v\n%s", err, stmt)
		}
	}
	return d, db
}

// seedLookups inserts row id 1 into every lookup table.
func seedLookups(t *testing.T, d Dialect, db *sql.DB) {
	t.Helper()
	for _, table := range LookupTables {
		query, args, err := BuildInsert(d, table, map[string]any{"id": 1, "name": "Default " + table}, true)
		if err != nil {
			t.Fatalf("BuildInsert(%s) failed: %v", table, err)
		}
		if _, err := db.Exec(query, args...); err != nil {
			t.Fatalf("seed %s failed: %v", table, err)
		}
	}
}

func testUser(email string) map[string]any {
	return map[string]any{
		"email_id":      email,
		"password_hash": "x",
		"first_name":    "Test",
		"last_name":     "User",
		"role_id":       1,
		"department_id": 1,
	}
}
