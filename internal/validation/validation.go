package validation

import (
	"fmt"
	"strings"
)

// ValidationError represents input rejected before any upstream call
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MaxMessageLength bounds a single doctor message.
const MaxMessageLength = 2000

// ValidateMessage trims a player message and checks it is non-empty and bounded
func ValidateMessage(message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", &ValidationError{Field: "message", Message: "message is required"}
	}
	if len([]rune(message)) > MaxMessageLength {
		return "", &ValidationError{Field: "message", Message: fmt.Sprintf("message must be at most %d characters", MaxMessageLength)}
	}
	return message, nil
}

// ValidateSessionID checks a session id was supplied
func ValidateSessionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: "sessionId", Message: "session id is required"}
	}
	return nil
}

// ValidateMedication checks the trial-treatment medication name
func ValidateMedication(medication string) (string, error) {
	medication = strings.TrimSpace(medication)
	if medication == "" {
		return "", &ValidationError{Field: "medication", Message: "medication is required"}
	}
	if len([]rune(medication)) > 200 {
		return "", &ValidationError{Field: "medication", Message: "medication must be at most 200 characters"}
	}
	return medication, nil
}

// ValidateTranscriptLength enforces the minimum exchange count before a diagnosis
func ValidateTranscriptLength(entries, minimum int) error {
	if entries < minimum {
		return &ValidationError{
			Field:   "transcript",
			Message: fmt.Sprintf("at least %d messages are required before a diagnosis (have %d)", minimum, entries),
		}
	}
	return nil
}
