// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"medgame/internal/llm"
)

// Reply is the scripted outcome of one completion
type Reply struct {
	Text string
	Err  error
}

// Client answers completions by matching a keyword in the system prompt.
// Calls are recorded for inspection.
type Client struct {
	mu sync.Mutex

	// Routes maps a substring of the first message to a reply
	Routes map[string]Reply
	// Default is used when no route matches
	Default Reply

	ImageURL string
	ImageErr error
	Text     string
	TextErr  error

	Requests []llm.Request
}

// New returns a client with no routes
func New() *Client {
	return &Client{Routes: make(map[string]Reply)}
}

// On registers a reply for prompts containing key
func (c *Client) On(key, text string) *Client {
	c.mu.Lock()
	c.Routes[key] = Reply{Text: text}
	c.mu.Unlock()
	return c
}

// Fail registers an error for prompts containing key
func (c *Client) Fail(key string) *Client {
	c.mu.Lock()
	c.Routes[key] = Reply{Err: &llm.UpstreamError{Op: "complete", Err: errors.New("scripted failure")}}
	c.mu.Unlock()
	return c
}

// Calls counts recorded completions whose first message contains key
func (c *Client) Calls(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.Requests {
		if len(r.Messages) > 0 && strings.Contains(r.Messages[0].Content, key) {
			n++
		}
	}
	return n
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, req)

	if err := ctx.Err(); err != nil {
		return "", &llm.UpstreamError{Op: "complete", Err: err}
	}

	prompt := ""
	if len(req.Messages) > 0 {
		prompt = req.Messages[0].Content
	}
	for key, reply := range c.Routes {
		if strings.Contains(prompt, key) {
			return reply.Text, reply.Err
		}
	}
	return c.Default.Text, c.Default.Err
}

func (c *Client) GenerateImage(context.Context, string) (string, error) {
	return c.ImageURL, c.ImageErr
}

func (c *Client) Transcribe(context.Context, []byte, string) (string, error) {
	return c.Text, c.TextErr
}
