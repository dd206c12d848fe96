package service

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"medgame/internal/database"
	"medgame/internal/models"
	"medgame/internal/repository"
)

const backupVersion = "1.0"

// BackupData represents the complete database backup structure
type BackupData struct {
	Version      string                      `json:"version"`
	ExportedAt   time.Time                   `json:"exported_at"`
	DatabaseType string                      `json:"database_type"`
	Saves        []models.SaveEntry          `json:"saves"`
	Results      []models.ConsultationResult `json:"results"`
}

// ImportSummary counts what an import wrote
type ImportSummary struct {
	Saves          int
	Results        int
	SkippedResults int
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db      *database.DB
	saves   *repository.SaveRepository
	results *repository.ResultRepository
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB) *BackupService {
	return &BackupService{
		db:      db,
		saves:   repository.NewSaveRepository(db, ""),
		results: repository.NewResultRepository(db),
	}
}

// Snapshot reads every save and result into a BackupData
func (s *BackupService) Snapshot() (*BackupData, error) {
	saves, err := s.saves.ListAll()
	if err != nil {
		return nil, fmt.Errorf("failed to export saves: %w", err)
	}
	results, err := s.results.ListAll()
	if err != nil {
		return nil, fmt.Errorf("failed to export results: %w", err)
	}

	return &BackupData{
		Version:      backupVersion,
		ExportedAt:   time.Now().UTC(),
		DatabaseType: s.db.Dialect.DriverName(),
		Saves:        saves,
		Results:      results,
	}, nil
}

// ExportToWriter writes an indented JSON backup to w
func (s *BackupService) ExportToWriter(w io.Writer) (*BackupData, error) {
	backup, err := s.Snapshot()
	if err != nil {
		return nil, err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	return backup, nil
}

// Export creates a complete backup of the database to a file
func (s *BackupService) Export(outputPath string) error {
	log.Println("Starting database export...")

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	backup, err := s.ExportToWriter(file)
	if err != nil {
		return err
	}

	log.Printf("Database exported successfully to %s", outputPath)
	log.Printf("Exported: %d saves, %d results", len(backup.Saves), len(backup.Results))
	return nil
}

// Import restores a database from a backup file
func (s *BackupService) Import(inputPath string) (*ImportSummary, error) {
	log.Printf("Starting database import from %s...", inputPath)

	file, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return s.ImportFromReader(file)
}

// ImportFromReader restores a database from a backup reader in a single
// transaction. Saves are upserted; results already present for the same
// session are skipped.
func (s *BackupService) ImportFromReader(reader io.Reader) (*ImportSummary, error) {
	var backup BackupData
	if err := json.NewDecoder(reader).Decode(&backup); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != backupVersion {
		return nil, fmt.Errorf("unsupported backup version %q", backup.Version)
	}

	log.Printf("Backup version: %s, exported at: %s", backup.Version, backup.ExportedAt)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer tx.Rollback()

	saves := repository.NewSaveRepository(tx, "")
	results := repository.NewResultRepository(tx)

	summary := &ImportSummary{}
	for _, entry := range backup.Saves {
		if entry.UpdatedAt.IsZero() {
			entry.UpdatedAt = time.Now().UTC()
		}
		if err := saves.Restore(entry); err != nil {
			return nil, fmt.Errorf("failed to import save %s/%s: %w", entry.Profile, entry.Key, err)
		}
		summary.Saves++
	}

	for _, result := range backup.Results {
		exists, err := results.HasSession(result.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to check result %s: %w", result.SessionID, err)
		}
		if exists {
			summary.SkippedResults++
			continue
		}
		if _, err := results.Create(&result); err != nil {
			return nil, fmt.Errorf("failed to import result %s: %w", result.SessionID, err)
		}
		summary.Results++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}

	log.Printf("Database import completed: %d saves, %d results (%d skipped)",
		summary.Saves, summary.Results, summary.SkippedResults)
	return summary, nil
}

// Clear deletes every save and result
func (s *BackupService) Clear() error {
	for _, table := range []string{"consultation_results", "saves"} {
		if _, err := s.db.Exec(s.db.Dialect.ClearTableQuery(table)); err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
		log.Printf("Cleared table: %s", table)
	}
	return nil
}
