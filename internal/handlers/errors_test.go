package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"medgame/internal/llm"
	"medgame/internal/models"
	"medgame/internal/service"
	"medgame/internal/session"
	"medgame/internal/validation"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body models.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("response is not a JSON error: %v", err)
	}
	return body.Error
}

func TestRespondWithErrorWritesStatusAndBody(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondWithError(recorder, 418, "Teapot", "", nil)

	if recorder.Code != 418 {
		t.Fatalf("expected status 418, got %d", recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}
	if msg := decodeError(t, recorder); msg != "Teapot" {
		t.Fatalf("expected error 'Teapot', got %q", msg)
	}
}

func TestRespondWithErrorLogsMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := log.Default()
	originalOutput := logger.Writer()
	logger.SetOutput(&buf)
	defer logger.SetOutput(originalOutput)

	recorder := httptest.NewRecorder()
	err := errors.New("boom")

	respondWithError(recorder, 500, "Internal server error", "", err)

	logOutput := buf.String()
	if !strings.Contains(logOutput, "Internal server error") {
		t.Fatalf("expected log to include user message, got %q", logOutput)
	}
	if !strings.Contains(logOutput, "boom") {
		t.Fatalf("expected log to include error, got %q", logOutput)
	}
}

func TestRespondWithServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"not found", session.ErrNotFound, http.StatusNotFound, ErrSessionNotFound},
		{"wrapped not found", fmt.Errorf("chat: %w", session.ErrNotFound), http.StatusNotFound, ErrSessionNotFound},
		{"perk used", session.ErrPerkUsed, http.StatusConflict, ErrPerkAlreadyUsed},
		{"transcript full", session.ErrTranscriptFull, http.StatusConflict, ErrTranscriptLimit},
		{"invalid level", service.ErrInvalidLevel, http.StatusBadRequest, ErrInvalidLevel},
		{"validation", &validation.ValidationError{Field: "message", Message: "message vide"}, http.StatusBadRequest, "message vide"},
		{"upstream", &llm.UpstreamError{Op: "complete", Err: errors.New("timeout")}, http.StatusBadGateway, ErrUpstreamUnavailable},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, ErrInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondWithServiceError(rec, "test", tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if msg := decodeError(t, rec); msg != tt.wantMsg {
				t.Errorf("error = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}
