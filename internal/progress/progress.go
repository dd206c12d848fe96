// Package progress persists the player's level progression and settings.
package progress

import (
	"fmt"
	"log"
	"sync"

	"gopkg.in/yaml.v3"

	"medgame/internal/content"
	"medgame/internal/scoring"
)

const (
	saveKey     = "save"
	settingsKey = "settings"
)

// LevelScore is the best result and attempt count for one level
type LevelScore struct {
	Score    int `yaml:"score"`
	Stars    int `yaml:"stars"`
	Attempts int `yaml:"attempts"`
}

// SaveRecord is the player's progression
type SaveRecord struct {
	CurrentLevel     int                   `yaml:"current_level"`
	MaxUnlockedLevel int                   `yaml:"max_unlocked_level"`
	Scores           map[int]LevelScore    `yaml:"scores"`
	UnlockedCards    []content.ConditionID `yaml:"unlocked_cards"`
	FirstTime        bool                  `yaml:"first_time"`
}

// DefaultSave returns the record of a new player
func DefaultSave() SaveRecord {
	return SaveRecord{
		CurrentLevel:     1,
		MaxUnlockedLevel: 1,
		Scores:           map[int]LevelScore{},
		UnlockedCards:    []content.ConditionID{},
		FirstTime:        true,
	}
}

// Settings are the player's preferences
type Settings struct {
	Volume               float64 `yaml:"volume"`
	SoundEnabled         bool    `yaml:"sound_enabled"`
	AnimationsEnabled    bool    `yaml:"animations_enabled"`
	TranscriptionEnabled bool    `yaml:"transcription_enabled"`
}

// DefaultSettings returns the settings of a new player
func DefaultSettings() Settings {
	return Settings{
		Volume:            0.5,
		SoundEnabled:      true,
		AnimationsEnabled: true,
	}
}

// SettingsPatch is a partial settings update. Nil fields are left alone.
type SettingsPatch struct {
	Volume               *float64 `yaml:"volume,omitempty"`
	SoundEnabled         *bool    `yaml:"sound_enabled,omitempty"`
	AnimationsEnabled    *bool    `yaml:"animations_enabled,omitempty"`
	TranscriptionEnabled *bool    `yaml:"transcription_enabled,omitempty"`
}

// Apply returns s with the non-nil fields of p
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.Volume != nil {
		s.Volume = min(max(*p.Volume, 0), 1)
	}
	if p.SoundEnabled != nil {
		s.SoundEnabled = *p.SoundEnabled
	}
	if p.AnimationsEnabled != nil {
		s.AnimationsEnabled = *p.AnimationsEnabled
	}
	if p.TranscriptionEnabled != nil {
		s.TranscriptionEnabled = *p.TranscriptionEnabled
	}
	return s
}

// Store reads and writes progression through a Backend
type Store struct {
	mu       sync.Mutex
	backend  Backend
	maxLevel int
}

// NewStore creates a store. maxLevel caps level unlocks.
func NewStore(backend Backend, maxLevel int) *Store {
	if maxLevel < 1 {
		maxLevel = 1
	}
	return &Store{backend: backend, maxLevel: maxLevel}
}

// Load returns the saved record. Missing or unreadable data yields defaults.
func (s *Store) Load() SaveRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() SaveRecord {
	data, err := s.backend.Read(saveKey)
	if err != nil {
		log.Printf("Error reading save, using defaults: %v", err)
		return DefaultSave()
	}
	if data == nil {
		return DefaultSave()
	}

	rec := DefaultSave()
	if err := yaml.Unmarshal(data, &rec); err != nil {
		log.Printf("Corrupt save, using defaults: %v", err)
		return DefaultSave()
	}
	return s.normalize(rec)
}

func (s *Store) normalize(rec SaveRecord) SaveRecord {
	if rec.Scores == nil {
		rec.Scores = map[int]LevelScore{}
	}
	if rec.UnlockedCards == nil {
		rec.UnlockedCards = []content.ConditionID{}
	}
	rec.MaxUnlockedLevel = min(max(rec.MaxUnlockedLevel, 1), s.maxLevel)
	rec.CurrentLevel = min(max(rec.CurrentLevel, 1), rec.MaxUnlockedLevel)
	return rec
}

func (s *Store) save(rec SaveRecord) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode save: %w", err)
	}
	if err := s.backend.Write(saveKey, data); err != nil {
		return fmt.Errorf("failed to write save: %w", err)
	}
	return nil
}

func (s *Store) modify(fn func(*SaveRecord)) (SaveRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.load()
	fn(&rec)
	if err := s.save(rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// Update records a finished attempt. The best score only changes when the
// new score is strictly higher. Passing the highest unlocked level unlocks
// the next one.
func (s *Store) Update(levelID, score, stars int) (SaveRecord, error) {
	return s.modify(func(rec *SaveRecord) {
		prev := rec.Scores[levelID]
		next := LevelScore{Score: prev.Score, Stars: prev.Stars, Attempts: prev.Attempts + 1}
		if score > prev.Score {
			next.Score = score
			next.Stars = stars
		}
		rec.Scores[levelID] = next

		if scoring.Passed(stars) && levelID >= rec.MaxUnlockedLevel {
			rec.MaxUnlockedLevel = min(levelID+1, s.maxLevel)
		}
	})
}

// UnlockContent adds cards to the collection and returns the ones that were new
func (s *Store) UnlockContent(ids []content.ConditionID) ([]content.ConditionID, error) {
	var added []content.ConditionID
	_, err := s.modify(func(rec *SaveRecord) {
		known := make(map[content.ConditionID]bool, len(rec.UnlockedCards))
		for _, id := range rec.UnlockedCards {
			known[id] = true
		}
		for _, id := range ids {
			if known[id] {
				continue
			}
			known[id] = true
			rec.UnlockedCards = append(rec.UnlockedCards, id)
			added = append(added, id)
		}
	})
	return added, err
}

// SetCurrentLevel selects a level, capped at the highest unlocked one
func (s *Store) SetCurrentLevel(levelID int) error {
	_, err := s.modify(func(rec *SaveRecord) {
		rec.CurrentLevel = min(max(levelID, 1), rec.MaxUnlockedLevel)
	})
	return err
}

// MarkPlayed clears the first-time flag
func (s *Store) MarkPlayed() error {
	_, err := s.modify(func(rec *SaveRecord) {
		rec.FirstTime = false
	})
	return err
}

// UnlockAllLevels opens every level. Used for testing content.
func (s *Store) UnlockAllLevels() error {
	_, err := s.modify(func(rec *SaveRecord) {
		rec.MaxUnlockedLevel = s.maxLevel
	})
	return err
}

// Reset deletes the save and the settings
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Delete(saveKey); err != nil {
		return fmt.Errorf("failed to delete save: %w", err)
	}
	if err := s.backend.Delete(settingsKey); err != nil {
		return fmt.Errorf("failed to delete settings: %w", err)
	}
	return nil
}

// LoadSettings returns stored settings merged over the defaults
func (s *Store) LoadSettings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadSettings()
}

func (s *Store) loadSettings() Settings {
	data, err := s.backend.Read(settingsKey)
	if err != nil {
		log.Printf("Error reading settings, using defaults: %v", err)
		return DefaultSettings()
	}
	if data == nil {
		return DefaultSettings()
	}

	var patch SettingsPatch
	if err := yaml.Unmarshal(data, &patch); err != nil {
		log.Printf("Corrupt settings, using defaults: %v", err)
		return DefaultSettings()
	}
	return patch.Apply(DefaultSettings())
}

// SaveSettings merges patch over the current settings and stores the result
func (s *Store) SaveSettings(patch SettingsPatch) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := patch.Apply(s.loadSettings())
	data, err := yaml.Marshal(settings)
	if err != nil {
		return settings, fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := s.backend.Write(settingsKey, data); err != nil {
		return settings, fmt.Errorf("failed to write settings: %w", err)
	}
	return settings, nil
}
