// Package apiclient talks to the consultation API over HTTP.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"medgame/internal/llm"
	"medgame/internal/models"
	"medgame/internal/session"
	"medgame/internal/validation"
)

const (
	apiPrefix      = "/game/api"
	defaultTimeout = 90 * time.Second
	maxErrorBody   = 64 << 10
)

var (
	ErrRateLimited = errors.New("rate limited")
	ErrForbidden   = errors.New("origin rejected")
)

// APIError is a non-2xx answer from the server. It unwraps to the matching
// domain error so callers can use errors.Is and errors.As.
type APIError struct {
	Status  int
	Message string
	err     error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.err
}

// Client calls the consultation API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client for the server at baseURL, e.g. "http://localhost:3001"
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health fetches the server status
func (c *Client) Health(ctx context.Context) (*models.HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiPrefix+"/health", nil)
	if err != nil {
		return nil, err
	}
	var out models.HealthResponse
	if err := c.do(req, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Start(ctx context.Context, levelID int) (*models.StartResponse, error) {
	var out models.StartResponse
	if err := c.post(ctx, "/start", models.StartRequest{LevelID: levelID}, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Chat(ctx context.Context, sessionID, message string) (*models.ChatResponse, error) {
	var out models.ChatResponse
	err := c.post(ctx, "/chat", models.ChatRequest{SessionID: sessionID, Message: message}, &out, session.ErrTranscriptFull)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Exam(ctx context.Context, sessionID, examType string) (string, error) {
	var out models.ExamResponse
	err := c.post(ctx, "/exams", models.ExamRequest{SessionID: sessionID, ExamType: examType}, &out, session.ErrPerkUsed)
	return out.Report, err
}

func (c *Client) Hint(ctx context.Context, sessionID string) (string, error) {
	var out models.HintResponse
	err := c.post(ctx, "/hint", models.SessionRequest{SessionID: sessionID}, &out, session.ErrPerkUsed)
	return out.Hint, err
}

func (c *Client) Photo(ctx context.Context, sessionID string) (string, error) {
	var out models.PhotoResponse
	err := c.post(ctx, "/photo", models.SessionRequest{SessionID: sessionID}, &out, session.ErrPerkUsed)
	return out.ImageURL, err
}

func (c *Client) Symptoms(ctx context.Context, sessionID string) (string, error) {
	var out models.SymptomsResponse
	err := c.post(ctx, "/symptoms", models.SessionRequest{SessionID: sessionID}, &out, nil)
	return out.Symptoms, err
}

func (c *Client) Differential(ctx context.Context, sessionID string) (string, error) {
	var out models.DifferentialResponse
	err := c.post(ctx, "/differential", models.SessionRequest{SessionID: sessionID}, &out, session.ErrPerkUsed)
	return out.Diagnoses, err
}

func (c *Client) TrialTreatment(ctx context.Context, sessionID, medication string) (string, error) {
	var out models.TrialTreatmentResponse
	body := models.TrialTreatmentRequest{SessionID: sessionID, Medication: medication}
	err := c.post(ctx, "/trial-treatment", body, &out, session.ErrPerkUsed)
	return out.Evolution, err
}

func (c *Client) Guess(ctx context.Context, sessionID, guessedConditionID string) (*models.GuessResponse, error) {
	var out models.GuessResponse
	body := models.GuessRequest{SessionID: sessionID, GuessedConditionID: guessedConditionID}
	if err := c.post(ctx, "/guess", body, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transcribe sends base64 audio for transcription
func (c *Client) Transcribe(ctx context.Context, audioBase64 string) (string, error) {
	var out models.TranscribeResponse
	err := c.post(ctx, "/transcribe", models.TranscribeRequest{AudioBase64: audioBase64}, &out, nil)
	return out.Text, err
}

// post sends a JSON body. conflict is the error a 409 stands for on this endpoint.
func (c *Client) post(ctx context.Context, path string, body, out any, conflict error) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPrefix+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out, conflict)
}

func (c *Client) do(req *http.Request, out any, conflict error) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", req.URL.Path, err)
		}
		return nil
	}

	return newAPIError(req.URL.Path, resp, conflict)
}

func newAPIError(path string, resp *http.Response, conflict error) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body models.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		apiErr.err = session.ErrNotFound
	case http.StatusConflict:
		apiErr.err = conflict
	case http.StatusBadRequest:
		apiErr.err = &validation.ValidationError{Field: "request", Message: apiErr.Message}
	case http.StatusTooManyRequests:
		apiErr.err = ErrRateLimited
	case http.StatusForbidden:
		apiErr.err = ErrForbidden
	case http.StatusBadGateway:
		apiErr.err = &llm.UpstreamError{Op: path, Err: errors.New(apiErr.Message)}
	}
	return apiErr
}
