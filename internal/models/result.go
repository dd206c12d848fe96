package models

import "time"

// ConsultationResult is one finished consultation, recorded when a diagnosis is submitted
type ConsultationResult struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	LevelID   int       `json:"level_id"`
	Condition string    `json:"condition"`
	Guess     string    `json:"guess"`
	Correct   bool      `json:"correct"`
	Score     int       `json:"score"`
	Stars     int       `json:"stars"`
	Turns     int       `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
}

// LevelStats aggregates results for one level
type LevelStats struct {
	LevelID  int
	Attempts int
	Correct  int
}

// Accuracy returns the share of correct diagnoses as a percentage
func (s LevelStats) Accuracy() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Correct) * 100 / float64(s.Attempts)
}

// SaveEntry is one stored progress document
type SaveEntry struct {
	Profile   string    `json:"profile"`
	Key       string    `json:"save_key"`
	Payload   string    `json:"payload"`
	UpdatedAt time.Time `json:"updated_at"`
}
