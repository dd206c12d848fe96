// Package guardrail screens doctor messages before they reach the patient.
// Any failure of the classifier lets the message through.
package guardrail

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"medgame/internal/llm"
	"medgame/internal/prompts"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultReason  = "Message inapproprié."
)

// Verdict is the outcome of a check
type Verdict struct {
	Accept bool
	Reason string
}

// Checker classifies messages with a language model
type Checker struct {
	client  llm.Client
	timeout time.Duration
}

// New creates a checker. A zero timeout uses DefaultTimeout.
func New(client llm.Client, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Checker{client: client, timeout: timeout}
}

// Check returns a rejection only when the classifier explicitly says valid=false
func (c *Checker) Check(ctx context.Context, message string) Verdict {
	system, err := prompts.Guardrail()
	if err != nil {
		log.Printf("Guardrail prompt unavailable: %v", err)
		return Verdict{Accept: true}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: message},
		},
		Temperature: 0.1,
		MaxTokens:   80,
		JSON:        true,
	})
	if err != nil {
		log.Printf("Guardrail check failed, accepting message: %v", err)
		return Verdict{Accept: true}
	}

	return parseVerdict(out)
}

func parseVerdict(out string) Verdict {
	var parsed struct {
		Valid  *bool  `json:"valid"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(llm.StripFences(out)), &parsed); err != nil || parsed.Valid == nil {
		return Verdict{Accept: true}
	}
	if *parsed.Valid {
		return Verdict{Accept: true}
	}
	reason := parsed.Reason
	if reason == "" {
		reason = DefaultReason
	}
	return Verdict{Accept: false, Reason: reason}
}
