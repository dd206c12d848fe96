package repository

import (
	"medgame/internal/database"
	"medgame/internal/models"
)

// ResultRepository records finished consultations
type ResultRepository struct {
	db database.DBTX
}

// NewResultRepository creates a new result repository
func NewResultRepository(db database.DBTX) *ResultRepository {
	return &ResultRepository{db: db}
}

// Create inserts a result and returns its id
func (r *ResultRepository) Create(result *models.ConsultationResult) (int64, error) {
	query := `
		INSERT INTO consultation_results
			(session_id, level_id, condition_id, guess, correct, score, stars, turns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query,
		result.SessionID, result.LevelID, result.Condition, result.Guess,
		result.Correct, result.Score, result.Stars, result.Turns, result.CreatedAt.UTC())
	if err != nil {
		return 0, err
	}
	result.ID = id
	return id, nil
}

// ListRecent returns the latest results, newest first
func (r *ResultRepository) ListRecent(limit int) ([]models.ConsultationResult, error) {
	return r.list(`
		SELECT id, session_id, level_id, condition_id, guess, correct, score, stars, turns, created_at
		FROM consultation_results
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
}

// ListAll returns every result in insertion order
func (r *ResultRepository) ListAll() ([]models.ConsultationResult, error) {
	return r.list(`
		SELECT id, session_id, level_id, condition_id, guess, correct, score, stars, turns, created_at
		FROM consultation_results
		ORDER BY id
	`)
}

func (r *ResultRepository) list(query string, args ...interface{}) ([]models.ConsultationResult, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.ConsultationResult
	for rows.Next() {
		var res models.ConsultationResult
		if err := rows.Scan(&res.ID, &res.SessionID, &res.LevelID, &res.Condition, &res.Guess,
			&res.Correct, &res.Score, &res.Stars, &res.Turns, &res.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// StatsByLevel aggregates attempts and correct diagnoses per level
func (r *ResultRepository) StatsByLevel() ([]models.LevelStats, error) {
	query := `
		SELECT level_id, COUNT(*), SUM(CASE WHEN correct THEN 1 ELSE 0 END)
		FROM consultation_results
		GROUP BY level_id
		ORDER BY level_id
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.LevelStats
	for rows.Next() {
		var s models.LevelStats
		if err := rows.Scan(&s.LevelID, &s.Attempts, &s.Correct); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// HasSession reports whether a result for sessionID is already stored
func (r *ResultRepository) HasSession(sessionID string) (bool, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM consultation_results WHERE session_id = ?", sessionID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
