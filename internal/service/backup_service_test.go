package service

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"medgame/internal/database"
	"medgame/internal/models"
	"medgame/internal/repository"
)

func openBackupDB(t *testing.T, name string) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping database test in short mode")
	}
	db, err := database.Initialize(filepath.Join(t.TempDir(), name))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBackupRoundTrip(t *testing.T) {
	src := openBackupDB(t, "src.db")
	dst := openBackupDB(t, "dst.db")

	if err := repository.NewSaveRepository(src, "alice").Put("save", "current_level: 4\n"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	results := repository.NewResultRepository(src)
	for i, sid := range []string{"s-1", "s-2"} {
		_, err := results.Create(&models.ConsultationResult{
			SessionID: sid, LevelID: i + 1, Condition: "common_cold", Guess: "common_cold",
			Correct: true, Score: 100, Stars: 3, Turns: 6, CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	var buf bytes.Buffer
	backup, err := NewBackupService(src).ExportToWriter(&buf)
	if err != nil {
		t.Fatalf("ExportToWriter() error = %v", err)
	}
	if len(backup.Saves) != 1 || len(backup.Results) != 2 {
		t.Fatalf("exported %d saves, %d results", len(backup.Saves), len(backup.Results))
	}

	restore := NewBackupService(dst)
	payload := buf.Bytes()
	summary, err := restore.ImportFromReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("ImportFromReader() error = %v", err)
	}
	if summary.Saves != 1 || summary.Results != 2 || summary.SkippedResults != 0 {
		t.Errorf("summary = %+v", summary)
	}

	entry, err := repository.NewSaveRepository(dst, "alice").Get("save")
	if err != nil || entry == nil {
		t.Fatalf("Get() = %+v, %v", entry, err)
	}
	if entry.Payload != "current_level: 4\n" {
		t.Errorf("payload = %q", entry.Payload)
	}

	again, err := restore.ImportFromReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("second import error = %v", err)
	}
	if again.Results != 0 || again.SkippedResults != 2 {
		t.Errorf("second import summary = %+v, want results skipped", again)
	}

	all, err := repository.NewResultRepository(dst).ListAll()
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d results after two imports, want 2", len(all))
	}
}

func TestImportRejectsUnknownVersion(t *testing.T) {
	db := openBackupDB(t, "version.db")

	_, err := NewBackupService(db).ImportFromReader(bytes.NewBufferString(`{"version": "9.9"}`))
	if err == nil {
		t.Fatal("expected an error for an unknown backup version")
	}
}

func TestClear(t *testing.T) {
	db := openBackupDB(t, "clear.db")
	if err := repository.NewSaveRepository(db, "").Put("settings", "volume: 1\n"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	svc := NewBackupService(db)
	if err := svc.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	backup, err := svc.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(backup.Saves) != 0 || len(backup.Results) != 0 {
		t.Errorf("tables not empty after Clear: %+v", backup)
	}
}
