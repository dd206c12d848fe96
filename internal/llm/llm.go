package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Role values accepted in a Message
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrUnsupported is returned when a provider cannot perform an operation
	ErrUnsupported = errors.New("operation not supported by provider")
	// ErrNotConfigured is returned by the offline client
	ErrNotConfigured = errors.New("no language model configured")
)

// Message is one chat message sent to a provider
type Message struct {
	Role    string
	Content string
}

// Request is a single completion call
type Request struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
	// JSON asks the provider for a JSON object response
	JSON bool
}

// Client is the set of model operations the game relies on
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// UpstreamError wraps a failure of the model provider
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}

// StripFences removes a surrounding markdown code fence from model output
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.Contains(s[:nl], "{") {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// splitSystem separates leading system messages from the conversation
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	i := 0
	for ; i < len(messages) && messages[i].Role == RoleSystem; i++ {
		system = append(system, messages[i].Content)
	}
	return strings.Join(system, "\n\n"), messages[i:]
}

// Offline is the client used when no provider is configured
type Offline struct{}

func (Offline) Complete(context.Context, Request) (string, error) {
	return "", upstream("complete", ErrNotConfigured)
}

func (Offline) GenerateImage(context.Context, string) (string, error) {
	return "", upstream("image", ErrNotConfigured)
}

func (Offline) Transcribe(context.Context, []byte, string) (string, error) {
	return "", upstream("transcribe", ErrNotConfigured)
}
