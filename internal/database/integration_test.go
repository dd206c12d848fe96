package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	db, err := Initialize(filepath.Join(t.TempDir(), "medgame_test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDatabaseIntegration checks that migrations create the expected tables
func TestDatabaseIntegration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, table := range []string{"migrations", "saves", "consultation_results"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}

	// running again is a no-op
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("second RunMigrations() error = %v", err)
	}
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 1 {
		t.Errorf("migrations recorded = %d, want 1", count)
	}
}

func TestUpsertSave(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()

	for _, payload := range []string{"first", "second"} {
		if _, err := db.Exec(db.Dialect.UpsertSaveQuery(), "default", "save", payload, now); err != nil {
			t.Fatalf("upsert %q: %v", payload, err)
		}
	}

	var payload string
	var count int
	if err := db.QueryRow("SELECT payload FROM saves WHERE profile = ? AND save_key = ?", "default", "save").Scan(&payload); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM saves").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if payload != "second" || count != 1 {
		t.Errorf("payload = %q, count = %d", payload, count)
	}
}

// TestDatabaseTransactions tests commit and rollback through Tx
func TestDatabaseTransactions(t *testing.T) {
	db := openTestDB(t)
	insert := "INSERT INTO consultation_results (session_id, level_id, condition_id, guess, correct, created_at) VALUES (?, ?, ?, ?, ?, ?)"

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	id, err := tx.ExecReturningID(insert, "s1", 1, "common_cold", "common_cold", true, time.Now())
	if err != nil {
		tx.Rollback()
		t.Fatalf("Failed to insert in transaction: %v", err)
	}
	if id <= 0 {
		t.Errorf("ExecReturningID() = %d", id)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Failed to commit transaction: %v", err)
	}

	tx2, err := db.Begin()
	if err != nil {
		t.Fatalf("Failed to begin second transaction: %v", err)
	}
	if _, err := tx2.Exec(insert, "s2", 1, "common_cold", "influenza", false, time.Now()); err != nil {
		tx2.Rollback()
		t.Fatalf("Failed to insert in second transaction: %v", err)
	}
	if err := tx2.Rollback(); err != nil {
		t.Fatalf("Failed to rollback transaction: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM consultation_results").Scan(&count); err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 result after rollback, got %d", count)
	}
}

// TestConcurrentAccess tests concurrent reads
func TestConcurrentAccess(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.Exec(db.Dialect.UpsertSaveQuery(), "default", "settings", "volume: 0.5", time.Now()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			var payload string
			if err := db.QueryRow("SELECT payload FROM saves WHERE save_key = ?", "settings").Scan(&payload); err != nil {
				t.Errorf("Concurrent read failed: %v", err)
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
