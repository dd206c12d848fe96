package security

import "github.com/google/uuid"

// GenerateSessionID creates a new random UUID for a consultation session
func GenerateSessionID() string {
	return uuid.New().String()
}
