package session

import (
	"time"

	"medgame/internal/content"
	"medgame/internal/patient"
)

// Role identifies who spoke a transcript turn
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Turn is one line of the consultation transcript
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// PerkKey names a one-time action available during a consultation
type PerkKey string

const (
	PerkLab            PerkKey = "lab"
	PerkImaging        PerkKey = "imaging"
	PerkHint           PerkKey = "hint"
	PerkPhoto          PerkKey = "photo"
	PerkDifferential   PerkKey = "differential"
	PerkTrialTreatment PerkKey = "trial_treatment"
)

// Session is the server-side state of one consultation.
// Condition and Instruction are never sent to the client.
type Session struct {
	ID          string
	CreatedAt   time.Time
	LevelID     int
	Identity    patient.Identity
	Modifiers   []patient.Modifier
	Description string
	Condition   content.ConditionID
	Instruction string
	Antecedents string
	Transcript  []Turn

	used     map[PerkKey]bool
	reports  map[PerkKey]string
	symptoms string
}

// MarkPerk flags key as used and reports whether this was the first use
func (s *Session) MarkPerk(key PerkKey) bool {
	if s.used == nil {
		s.used = make(map[PerkKey]bool)
	}
	if s.used[key] {
		return false
	}
	s.used[key] = true
	return true
}

// PerkUsed reports whether key has already been spent
func (s *Session) PerkUsed(key PerkKey) bool {
	return s.used[key]
}

// Report returns the cached output of a one-time action
func (s *Session) Report(key PerkKey) (string, bool) {
	r, ok := s.reports[key]
	return r, ok
}

// SetReport caches the output of a one-time action
func (s *Session) SetReport(key PerkKey, report string) {
	if s.reports == nil {
		s.reports = make(map[PerkKey]string)
	}
	s.reports[key] = report
}

// Symptoms returns the cached symptom extraction, if any
func (s *Session) Symptoms() string {
	return s.symptoms
}

// SetSymptoms replaces the cached symptom extraction
func (s *Session) SetSymptoms(symptoms string) {
	s.symptoms = symptoms
}

// Append adds turns to the transcript
func (s *Session) Append(turns ...Turn) {
	s.Transcript = append(s.Transcript, turns...)
}

func (s *Session) clone() *Session {
	c := *s
	c.Modifiers = append([]patient.Modifier(nil), s.Modifiers...)
	c.Transcript = append([]Turn(nil), s.Transcript...)
	c.used = make(map[PerkKey]bool, len(s.used))
	for k, v := range s.used {
		c.used[k] = v
	}
	c.reports = make(map[PerkKey]string, len(s.reports))
	for k, v := range s.reports {
		c.reports[k] = v
	}
	return &c
}
