// Package engine drives one consultation from the player's side: it owns the
// local transcript and perk flags, talks to the server through a Backend and
// reports every change on a typed event channel.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"medgame/internal/content"
	"medgame/internal/models"
	"medgame/internal/progress"
	"medgame/internal/scoring"
	"medgame/internal/session"
	"medgame/internal/validation"
)

// State is the consultation lifecycle position
type State int

const (
	StateIdle State = iota
	StateActive
	StateEvaluating
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateEvaluating:
		return "evaluating"
	case StateFinished:
		return "finished"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MinTranscriptEntries is the number of turns (two exchanges) required
// before a diagnosis may be submitted.
const MinTranscriptEntries = 4

const (
	FallbackFeedback   = "Aucun feedback disponible."
	ancillaryFailed    = "Résultat indisponible pour le moment. Réessayez."
	ancillaryUsedOnSrv = "Cette action a déjà été utilisée pour ce patient."
)

var (
	ErrLevelNotFound = errors.New("level not found")
	ErrLevelLocked   = errors.New("level is locked")
	ErrBusy          = errors.New("a request is already in flight")
	ErrInvalidState  = errors.New("operation not allowed in the current state")
	ErrPerkLocked    = errors.New("perk not unlocked at this level")
	ErrUnknownKind   = errors.New("unknown ancillary kind")
)

// Backend is the server side of a consultation
type Backend interface {
	Start(ctx context.Context, levelID int) (*models.StartResponse, error)
	Chat(ctx context.Context, sessionID, message string) (*models.ChatResponse, error)
	Exam(ctx context.Context, sessionID, examType string) (string, error)
	Hint(ctx context.Context, sessionID string) (string, error)
	Photo(ctx context.Context, sessionID string) (string, error)
	Symptoms(ctx context.Context, sessionID string) (string, error)
	Differential(ctx context.Context, sessionID string) (string, error)
	TrialTreatment(ctx context.Context, sessionID, medication string) (string, error)
	Guess(ctx context.Context, sessionID, guessedConditionID string) (*models.GuessResponse, error)
}

// StartInfo describes a freshly started consultation
type StartInfo struct {
	SessionID string
	Patient   models.PatientView
	Level     content.Level
	Perks     []content.Perk
	// NewPerk is the perk first unlocked by this level, if any
	NewPerk *content.Perk
	// NewCards lists conditions added to the player's collection
	NewCards []content.ConditionID
}

// Result is the outcome of a finished consultation
type Result struct {
	Guess                content.ConditionID
	Correct              bool
	Score                int
	Stars                int
	CorrectConditionID   content.ConditionID
	CorrectConditionName string
	Feedback             string
	// LevelUnlocked is set when this result opened the next level
	LevelUnlocked bool
	Save          progress.SaveRecord
}

// Engine runs consultations one at a time. It is safe for concurrent use.
type Engine struct {
	catalog  *content.Catalog
	backend  Backend
	progress *progress.Store

	mu         sync.Mutex
	state      State
	busy       bool
	sessionID  string
	level      content.Level
	patient    models.PatientView
	transcript []session.Turn
	ancillary  map[AncillaryKind]Ancillary
	symptoms   string
	result     *Result

	subsMu sync.Mutex
	subs   []chan Event
	closed bool
}

// New creates an engine. progress may be nil, in which case every level is
// playable and nothing is saved.
func New(catalog *content.Catalog, backend Backend, store *progress.Store) *Engine {
	return &Engine{
		catalog:   catalog,
		backend:   backend,
		progress:  store,
		ancillary: make(map[AncillaryKind]Ancillary),
	}
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Busy reports whether a request is in flight
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// Transcript returns a copy of the local transcript
func (e *Engine) Transcript() []session.Turn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]session.Turn(nil), e.transcript...)
}

// Patient returns what is known about the current patient
func (e *Engine) Patient() models.PatientView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.patient
}

// Level returns the level being played
func (e *Engine) Level() content.Level {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level
}

// SessionID returns the server session of the current consultation
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// Symptoms returns the last symptom summary fetched with RefreshSymptoms
func (e *Engine) Symptoms() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.symptoms
}

// LastResult returns the result of the finished consultation, if any
func (e *Engine) LastResult() (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return Result{}, false
	}
	return *e.result, true
}

// CanFinish reports whether a diagnosis may be submitted now
func (e *Engine) CanFinish() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateActive && !e.busy && len(e.transcript) >= MinTranscriptEntries
}

// StartLevel opens a new consultation on levelID
func (e *Engine) StartLevel(ctx context.Context, levelID int) (*StartInfo, error) {
	level, ok := e.catalog.Level(levelID)
	if !ok {
		return nil, ErrLevelNotFound
	}
	if e.progress != nil && levelID > e.progress.Load().MaxUnlockedLevel {
		return nil, ErrLevelLocked
	}

	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	if e.state != StateIdle && e.state != StateFinished {
		e.mu.Unlock()
		return nil, ErrInvalidState
	}
	e.busy = true
	e.mu.Unlock()

	e.emit(TypingChanged{Typing: true})
	resp, err := e.backend.Start(ctx, levelID)
	e.emit(TypingChanged{Typing: false})

	e.mu.Lock()
	e.busy = false
	if err != nil {
		e.mu.Unlock()
		e.emit(ErrorOccurred{Op: "start", Err: err})
		return nil, err
	}
	e.state = StateActive
	e.sessionID = resp.SessionID
	e.level = level
	e.patient = resp.Patient
	e.transcript = nil
	e.ancillary = make(map[AncillaryKind]Ancillary)
	e.symptoms = ""
	e.result = nil
	e.mu.Unlock()

	info := &StartInfo{
		SessionID: resp.SessionID,
		Patient:   resp.Patient,
		Level:     level,
		Perks:     e.catalog.UnlockedPerks(levelID),
	}
	if perk, ok := e.catalog.PerkUnlockedAt(levelID); ok {
		info.NewPerk = &perk
	}

	if e.progress != nil {
		newCards, err := e.progress.UnlockContent(level.Conditions)
		if err != nil {
			log.Printf("Error unlocking cards: %v", err)
		}
		info.NewCards = newCards
		if err := e.progress.SetCurrentLevel(levelID); err != nil {
			log.Printf("Error saving current level: %v", err)
		}
		if err := e.progress.MarkPlayed(); err != nil {
			log.Printf("Error saving first-play flag: %v", err)
		}
	}

	return info, nil
}

// Abandon drops the current consultation without scoring it. The server
// session is left to expire.
func (e *Engine) Abandon() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return ErrBusy
	}
	e.state = StateIdle
	e.sessionID = ""
	e.transcript = nil
	return nil
}

// begin claims the single-flight slot for an operation on the active session
func (e *Engine) begin() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateActive {
		return "", ErrInvalidState
	}
	if e.busy {
		return "", ErrBusy
	}
	e.busy = true
	return e.sessionID, nil
}

func (e *Engine) end() {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}

// SendDoctorMessage sends one doctor message and appends the patient's reply.
// A rejected or failed message leaves the transcript as it was.
func (e *Engine) SendDoctorMessage(ctx context.Context, text string) error {
	text, err := validation.ValidateMessage(text)
	if err != nil {
		return err
	}

	sessionID, err := e.begin()
	if err != nil {
		return err
	}

	doctor := session.Turn{Role: session.RoleDoctor, Text: text}
	e.mu.Lock()
	e.transcript = append(e.transcript, doctor)
	count := len(e.transcript)
	e.mu.Unlock()
	e.emit(MessageAppended{Turn: doctor, Count: count})

	e.emit(TypingChanged{Typing: true})
	resp, err := e.backend.Chat(ctx, sessionID, text)
	e.emit(TypingChanged{Typing: false})

	e.mu.Lock()
	e.busy = false
	if err != nil || resp.GuardrailFailed {
		e.retract(count)
		e.mu.Unlock()
		if err != nil {
			e.emit(ErrorOccurred{Op: "chat", Err: err, Retracted: true})
			return err
		}
		e.emit(GuardrailRejected{Text: text, Reason: resp.Reason})
		return nil
	}

	patientTurn := session.Turn{Role: session.RolePatient, Text: resp.Message}
	e.transcript = append(e.transcript, patientTurn)
	count = len(e.transcript)
	e.mu.Unlock()
	e.emit(MessageAppended{Turn: patientTurn, Count: count})
	return nil
}

// retract removes the doctor turn appended at position count. Caller holds mu.
func (e *Engine) retract(count int) {
	if len(e.transcript) == count {
		e.transcript = e.transcript[:count-1]
	}
}

// RefreshSymptoms asks the server to summarise the symptoms disclosed so far
func (e *Engine) RefreshSymptoms(ctx context.Context) (string, error) {
	sessionID, err := e.begin()
	if err != nil {
		return "", err
	}
	defer e.end()

	symptoms, err := e.backend.Symptoms(ctx, sessionID)
	if err != nil {
		e.emit(ErrorOccurred{Op: "symptoms", Err: err})
		return "", err
	}

	e.mu.Lock()
	e.symptoms = symptoms
	e.mu.Unlock()
	return symptoms, nil
}

// FinishConsultation submits the diagnosis and closes the consultation. A
// failed call still finishes, scored as incorrect with fallback feedback.
func (e *Engine) FinishConsultation(ctx context.Context, guess content.ConditionID) (*Result, error) {
	e.mu.Lock()
	if e.state != StateActive {
		e.mu.Unlock()
		return nil, ErrInvalidState
	}
	if e.busy {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	if err := validation.ValidateTranscriptLength(len(e.transcript), MinTranscriptEntries); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if !guess.Valid() {
		e.mu.Unlock()
		return nil, &validation.ValidationError{Field: "guess", Message: "unknown condition"}
	}
	e.busy = true
	e.state = StateEvaluating
	sessionID := e.sessionID
	levelID := e.level.ID
	e.mu.Unlock()

	e.emit(EvaluatingChanged{Evaluating: true})
	resp, err := e.backend.Guess(ctx, sessionID, guess.String())
	e.emit(EvaluatingChanged{Evaluating: false})

	result := Result{Guess: guess, Feedback: FallbackFeedback}
	if err != nil {
		e.emit(ErrorOccurred{Op: "guess", Err: err})
	} else {
		result.CorrectConditionName = resp.CorrectConditionName
		if strings.TrimSpace(resp.Feedback) != "" {
			result.Feedback = resp.Feedback
		}
		if truth, perr := content.ParseConditionID(resp.CorrectConditionID); perr == nil {
			result.CorrectConditionID = truth
			outcome := scoring.Evaluate(guess, truth)
			result.Correct = outcome.Correct
			result.Score = outcome.Score
			result.Stars = outcome.Stars
		} else {
			log.Printf("Server returned unknown condition %q", resp.CorrectConditionID)
		}
	}

	if e.progress != nil {
		before := e.progress.Load().MaxUnlockedLevel
		save, serr := e.progress.Update(levelID, result.Score, result.Stars)
		if serr != nil {
			log.Printf("Error saving progress: %v", serr)
		}
		result.Save = save
		result.LevelUnlocked = save.MaxUnlockedLevel > before
	}

	e.mu.Lock()
	e.state = StateFinished
	e.busy = false
	e.result = &result
	e.mu.Unlock()

	e.emit(Finished{Result: result})
	return &result, nil
}
