package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"medgame/internal/content"
	"medgame/internal/guardrail"
	"medgame/internal/llm"
	"medgame/internal/models"
	"medgame/internal/patient"
	"medgame/internal/prompts"
	"medgame/internal/scoring"
	"medgame/internal/session"
	"medgame/internal/validation"
)

var ErrInvalidLevel = errors.New("invalid level")

const (
	OfflineAntecedents  = "Antécédents: Non disponibles (hors ligne)."
	FallbackAntecedents = "• Aucun antécédent notable.\n• Bilan récent normal."
	FallbackFeedback    = "Aucun feedback disponible."

	maxAudioBytes = 10 * 1024 * 1024
)

// ResultRecorder persists finished consultations
type ResultRecorder interface {
	Create(result *models.ConsultationResult) (int64, error)
}

// ConsultationService runs consultations for the HTTP API
type ConsultationService struct {
	catalog   *content.Catalog
	generator *patient.Generator
	store     *session.Store
	client    llm.Client
	guard     *guardrail.Checker
	results   ResultRecorder
}

// NewConsultationService creates a consultation service. results may be nil.
func NewConsultationService(catalog *content.Catalog, generator *patient.Generator, store *session.Store,
	client llm.Client, guard *guardrail.Checker, results ResultRecorder) *ConsultationService {
	return &ConsultationService{
		catalog:   catalog,
		generator: generator,
		store:     store,
		client:    client,
		guard:     guard,
		results:   results,
	}
}

// ActiveSessions returns the number of stored sessions
func (s *ConsultationService) ActiveSessions() int {
	return s.store.Len()
}

// Start generates a patient for levelID and opens a session
func (s *ConsultationService) Start(ctx context.Context, levelID int) (*models.StartResponse, error) {
	level, ok := s.catalog.Level(levelID)
	if !ok {
		return nil, ErrInvalidLevel
	}

	p, err := s.generator.Generate(level)
	if err != nil {
		return nil, fmt.Errorf("failed to generate patient: %w", err)
	}
	card, _ := s.catalog.Card(p.Condition)

	antecedents := s.antecedents(ctx, p.Identity, card)

	id := s.store.Create(&session.Session{
		LevelID:     levelID,
		Identity:    p.Identity,
		Modifiers:   p.Modifiers,
		Description: p.Description,
		Condition:   p.Condition,
		Instruction: p.Instruction,
		Antecedents: antecedents,
	})

	modifiers := make([]models.ModifierView, len(p.Modifiers))
	for i, m := range p.Modifiers {
		modifiers[i] = models.ModifierView{
			Category:      m.Category,
			CategoryLabel: m.CategoryLabel,
			CategoryIcon:  m.CategoryIcon,
			ID:            m.ID,
			Name:          m.Name,
		}
	}

	return &models.StartResponse{
		SessionID: id,
		Patient: models.PatientView{
			Name:        p.Identity.FullName,
			Age:         p.Identity.Age,
			Gender:      p.Identity.Gender,
			Antecedents: antecedents,
			Description: p.Description,
			Modifiers:   modifiers,
		},
	}, nil
}

func (s *ConsultationService) antecedents(ctx context.Context, id patient.Identity, card *content.Card) string {
	prompt, err := prompts.Antecedents(id.FullName, id.Age, card.Name)
	if err != nil {
		log.Printf("Error rendering antecedents prompt: %v", err)
		return FallbackAntecedents
	}

	out, err := s.client.Complete(ctx, llm.Request{
		Messages:    []llm.Message{{Role: llm.RoleSystem, Content: prompt}},
		Temperature: 0.7,
		MaxTokens:   100,
	})
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		return OfflineAntecedents
	case err != nil:
		log.Printf("Error generating antecedents: %v", err)
		return FallbackAntecedents
	}
	return strings.TrimSpace(out)
}

// Chat screens the doctor's message and returns the patient's reply.
// The transcript grows by two turns on success and is untouched otherwise.
func (s *ConsultationService) Chat(ctx context.Context, sessionID, message string) (*models.ChatResponse, error) {
	message, err := validation.ValidateMessage(message)
	if err != nil {
		return nil, err
	}

	var resp models.ChatResponse
	err = s.store.Mutate(sessionID, func(sess *session.Session) error {
		if len(sess.Transcript)+2 > s.store.MaxTurns() {
			return session.ErrTranscriptFull
		}

		verdict := s.guard.Check(ctx, message)
		if !verdict.Accept {
			resp = models.ChatResponse{GuardrailFailed: true, Reason: verdict.Reason}
			return nil
		}

		msgs := append(conversation(sess.Instruction, sess.Transcript),
			llm.Message{Role: llm.RoleUser, Content: message})
		reply, err := s.client.Complete(ctx, llm.Request{
			Messages:    msgs,
			Temperature: 0.9,
			MaxTokens:   500,
		})
		if err != nil {
			return err
		}

		reply = strings.TrimSpace(reply)
		sess.Append(
			session.Turn{Role: session.RoleDoctor, Text: message},
			session.Turn{Role: session.RolePatient, Text: reply},
		)
		resp = models.ChatResponse{Message: reply}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// conversation maps the transcript to model messages behind a system prompt
func conversation(system string, transcript []session.Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(transcript)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, t := range transcript {
		role := llm.RoleUser
		if t.Role == session.RolePatient {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Text})
	}
	return msgs
}

// oneShot runs produce at most once per session for key. Failed attempts
// do not spend the perk.
func (s *ConsultationService) oneShot(sessionID string, key session.PerkKey, produce func(*session.Session, *content.Card) (string, error)) (string, error) {
	var out string
	err := s.store.Mutate(sessionID, func(sess *session.Session) error {
		if sess.PerkUsed(key) {
			return session.ErrPerkUsed
		}
		card, ok := s.catalog.Card(sess.Condition)
		if !ok {
			return fmt.Errorf("no card for condition %q", sess.Condition)
		}

		text, err := produce(sess, card)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		sess.MarkPerk(key)
		sess.SetReport(key, text)
		out = text
		return nil
	})
	return out, err
}

// Exam produces a lab or imaging report
func (s *ConsultationService) Exam(ctx context.Context, sessionID, examType string) (string, error) {
	kind := prompts.ExamKind(examType)
	key := session.PerkLab
	switch kind {
	case prompts.ExamLab:
	case prompts.ExamImaging:
		key = session.PerkImaging
	default:
		return "", &validation.ValidationError{Field: "examType", Message: "must be lab or imaging"}
	}

	return s.oneShot(sessionID, key, func(_ *session.Session, card *content.Card) (string, error) {
		reference := card.Lab
		if kind == prompts.ExamImaging {
			reference = card.Imaging
		}
		prompt, err := prompts.Exam(kind, card.Name, reference)
		if err != nil {
			return "", err
		}
		return s.client.Complete(ctx, llm.Request{
			Messages:    []llm.Message{{Role: llm.RoleSystem, Content: prompt}},
			Temperature: 0.7,
			MaxTokens:   250,
		})
	})
}

// Hint gives one subtle pointer towards the diagnosis
func (s *ConsultationService) Hint(ctx context.Context, sessionID string) (string, error) {
	return s.oneShot(sessionID, session.PerkHint, func(sess *session.Session, card *content.Card) (string, error) {
		prompt, err := prompts.Hint(card.Name)
		if err != nil {
			return "", err
		}
		return s.client.Complete(ctx, llm.Request{
			Messages:    conversation(prompt, sess.Transcript),
			Temperature: 0.7,
			MaxTokens:   50,
		})
	})
}

// Photo renders a portrait of the patient and returns its URL
func (s *ConsultationService) Photo(ctx context.Context, sessionID string) (string, error) {
	return s.oneShot(sessionID, session.PerkPhoto, func(sess *session.Session, card *content.Card) (string, error) {
		prompt, err := prompts.Photo(sess.Identity.Age, sess.Identity.Male, card.PhysicalSigns)
		if err != nil {
			return "", err
		}
		return s.client.GenerateImage(ctx, prompt)
	})
}

// Differential lists three likely diagnoses from the conversation so far
func (s *ConsultationService) Differential(ctx context.Context, sessionID string) (string, error) {
	return s.oneShot(sessionID, session.PerkDifferential, func(sess *session.Session, _ *content.Card) (string, error) {
		prompt, err := prompts.Differential()
		if err != nil {
			return "", err
		}
		return s.client.Complete(ctx, llm.Request{
			Messages:    conversation(prompt, sess.Transcript),
			Temperature: 0.5,
			MaxTokens:   100,
		})
	})
}

// TrialTreatment narrates how the patient responds to medication
func (s *ConsultationService) TrialTreatment(ctx context.Context, sessionID, medication string) (string, error) {
	medication, err := validation.ValidateMedication(medication)
	if err != nil {
		return "", err
	}
	return s.oneShot(sessionID, session.PerkTrialTreatment, func(_ *session.Session, card *content.Card) (string, error) {
		prompt, err := prompts.TrialTreatment(medication, card.Name)
		if err != nil {
			return "", err
		}
		return s.client.Complete(ctx, llm.Request{
			Messages:    []llm.Message{{Role: llm.RoleSystem, Content: prompt}},
			Temperature: 0.7,
			MaxTokens:   150,
		})
	})
}

// Symptoms re-extracts the disclosed symptoms. On failure the last
// successful extraction is returned when there is one.
func (s *ConsultationService) Symptoms(ctx context.Context, sessionID string) (string, error) {
	var out string
	err := s.store.Mutate(sessionID, func(sess *session.Session) error {
		if len(sess.Transcript) == 0 {
			out = prompts.NoSymptoms
			return nil
		}

		prompt, err := prompts.Symptoms()
		if err != nil {
			return err
		}
		text, err := s.client.Complete(ctx, llm.Request{
			Messages:    conversation(prompt, sess.Transcript),
			Temperature: 0.3,
			MaxTokens:   300,
		})
		if err != nil {
			if cached := sess.Symptoms(); cached != "" {
				log.Printf("Symptom extraction failed, serving cache: %v", err)
				out = cached
				return nil
			}
			return err
		}

		out = strings.TrimSpace(text)
		sess.SetSymptoms(out)
		return nil
	})
	return out, err
}

// Guess checks the diagnosis, asks for feedback and closes the session
func (s *ConsultationService) Guess(ctx context.Context, sessionID, guessed string) (*models.GuessResponse, error) {
	var resp *models.GuessResponse
	var result models.ConsultationResult

	err := s.store.Mutate(sessionID, func(sess *session.Session) error {
		// Guesses match canonical ids exactly. An unknown id is refused before
		// scoring and the session stays open so the player can resend it.
		guess, err := content.LookupConditionID(guessed)
		if err != nil {
			return guessError(err)
		}

		card, ok := s.catalog.Card(sess.Condition)
		if !ok {
			return fmt.Errorf("no card for condition %q", sess.Condition)
		}

		outcome := scoring.Evaluate(guess, sess.Condition)
		resp = &models.GuessResponse{
			IsCorrect:            outcome.Correct,
			CorrectConditionID:   sess.Condition.String(),
			CorrectConditionName: card.Name,
			Feedback:             s.feedback(ctx, card.Name, sess.Transcript),
		}
		result = models.ConsultationResult{
			SessionID: sess.ID,
			LevelID:   sess.LevelID,
			Condition: sess.Condition.String(),
			Guess:     guess.String(),
			Correct:   outcome.Correct,
			Score:     outcome.Score,
			Stars:     outcome.Stars,
			Turns:     len(sess.Transcript),
			CreatedAt: time.Now(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.store.Delete(sessionID)

	if s.results != nil {
		if _, err := s.results.Create(&result); err != nil {
			log.Printf("Error recording consultation result: %v", err)
		}
	}

	return resp, nil
}

func guessError(err error) error {
	msg := "diagnostic inconnu"
	var unknown *content.UnknownConditionError
	if errors.As(err, &unknown) && unknown.Suggestion != "" {
		msg = fmt.Sprintf("diagnostic inconnu, vouliez-vous dire %q ?", unknown.Suggestion)
	}
	return &validation.ValidationError{Field: "guessedConditionId", Message: msg}
}

func (s *ConsultationService) feedback(ctx context.Context, conditionName string, transcript []session.Turn) string {
	prompt, err := prompts.Feedback(conditionName)
	if err != nil {
		log.Printf("Error rendering feedback prompt: %v", err)
		return FallbackFeedback
	}

	out, err := s.client.Complete(ctx, llm.Request{
		Messages:    conversation(prompt, transcript),
		Temperature: 0.5,
		MaxTokens:   200,
		JSON:        true,
	})
	if err != nil {
		log.Printf("Feedback error: %v", err)
		return FallbackFeedback
	}

	var parsed struct {
		Feedback string `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(llm.StripFences(out)), &parsed); err != nil || strings.TrimSpace(parsed.Feedback) == "" {
		log.Printf("Feedback was not usable JSON: %q", out)
		return FallbackFeedback
	}
	return strings.TrimSpace(parsed.Feedback)
}

// Transcribe decodes base64 audio and returns its French transcript
func (s *ConsultationService) Transcribe(ctx context.Context, audioBase64 string) (string, error) {
	if strings.TrimSpace(audioBase64) == "" {
		return "", &validation.ValidationError{Field: "audioBase64", Message: "audio is required"}
	}
	if i := strings.Index(audioBase64, ","); i >= 0 && strings.HasPrefix(audioBase64, "data:") {
		audioBase64 = audioBase64[i+1:]
	}

	audio, err := base64.StdEncoding.DecodeString(audioBase64)
	if err != nil {
		return "", &validation.ValidationError{Field: "audioBase64", Message: "invalid base64"}
	}
	if len(audio) > maxAudioBytes {
		return "", &validation.ValidationError{Field: "audioBase64", Message: "audio is too large"}
	}

	text, err := s.client.Transcribe(ctx, audio, "audio.webm")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
