package repository

import (
	"database/sql"
	"errors"
	"time"

	"medgame/internal/database"
	"medgame/internal/models"
)

// SaveRepository stores progress documents keyed by profile and save key
type SaveRepository struct {
	db      database.DBTX
	profile string
}

// NewSaveRepository creates a repository scoped to one player profile
func NewSaveRepository(db database.DBTX, profile string) *SaveRepository {
	if profile == "" {
		profile = "default"
	}
	return &SaveRepository{db: db, profile: profile}
}

// Get returns the entry for key, or nil if it does not exist
func (r *SaveRepository) Get(key string) (*models.SaveEntry, error) {
	query := `
		SELECT profile, save_key, payload, updated_at
		FROM saves
		WHERE profile = ? AND save_key = ?
	`

	entry := &models.SaveEntry{}
	err := r.db.QueryRow(query, r.profile, key).Scan(&entry.Profile, &entry.Key, &entry.Payload, &entry.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Put inserts or replaces the entry for key
func (r *SaveRepository) Put(key, payload string) error {
	_, err := r.db.Exec(r.db.GetDialect().UpsertSaveQuery(), r.profile, key, payload, time.Now().UTC())
	return err
}

// Delete removes the entry for key
func (r *SaveRepository) Delete(key string) error {
	_, err := r.db.Exec("DELETE FROM saves WHERE profile = ? AND save_key = ?", r.profile, key)
	return err
}

// ListAll returns every stored entry across profiles
func (r *SaveRepository) ListAll() ([]models.SaveEntry, error) {
	rows, err := r.db.Query(`
		SELECT profile, save_key, payload, updated_at
		FROM saves
		ORDER BY profile, save_key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.SaveEntry
	for rows.Next() {
		var e models.SaveEntry
		if err := rows.Scan(&e.Profile, &e.Key, &e.Payload, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Restore writes an entry as-is, keeping its profile and timestamp
func (r *SaveRepository) Restore(e models.SaveEntry) error {
	_, err := r.db.Exec(r.db.GetDialect().UpsertSaveQuery(), e.Profile, e.Key, e.Payload, e.UpdatedAt)
	return err
}
