package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"medgame/internal/models"
	"medgame/internal/service"
	"medgame/internal/validation"
)

// GameHandler serves the consultation API
type GameHandler struct {
	consultations *service.ConsultationService
	provider      string
}

// NewGameHandler creates a new game handler. provider names the configured
// language model backend for the health report.
func NewGameHandler(consultations *service.ConsultationService, provider string) *GameHandler {
	return &GameHandler{
		consultations: consultations,
		provider:      provider,
	}
}

// RegisterRoutes mounts the API endpoints on r
func (h *GameHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Post("/start", h.Start)
	r.Post("/chat", h.Chat)
	r.Post("/exams", h.Exams)
	r.Post("/hint", h.Hint)
	r.Post("/photo", h.Photo)
	r.Post("/symptoms", h.Symptoms)
	r.Post("/differential", h.Differential)
	r.Post("/trial-treatment", h.TrialTreatment)
	r.Post("/guess", h.Guess)
	r.Post("/transcribe", h.Transcribe)
}

// decode reads a JSON body into dst, answering 400 on failure
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "Error decoding request", err)
		return false
	}
	return true
}

// decodeSession reads a body carrying a session id
func decodeSession(w http.ResponseWriter, r *http.Request, dst any, sessionID func() string) bool {
	if !decode(w, r, dst) {
		return false
	}
	if err := validation.ValidateSessionID(sessionID()); err != nil {
		respondWithServiceError(w, "", err)
		return false
	}
	return true
}

// Health reports liveness
func (h *GameHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, models.HealthResponse{
		Status:   "ok",
		Sessions: h.consultations.ActiveSessions(),
		Provider: h.provider,
	})
}

// Start generates a patient and opens a session
func (h *GameHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req models.StartRequest
	if !decode(w, r, &req) {
		return
	}

	resp, err := h.consultations.Start(r.Context(), req.LevelID)
	if err != nil {
		respondWithServiceError(w, "Error starting consultation", err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// Chat forwards a doctor message to the patient
func (h *GameHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if !decodeSession(w, r, &req, func() string { return req.SessionID }) {
		return
	}

	resp, err := h.consultations.Chat(r.Context(), req.SessionID, req.Message)
	if err != nil {
		respondWithServiceError(w, "Error in chat", err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// Exams returns a lab or imaging report
func (h *GameHandler) Exams(w http.ResponseWriter, r *http.Request) {
	var req models.ExamRequest
	if !decodeSession(w, r, &req, func() string { return req.SessionID }) {
		return
	}

	report, err := h.consultations.Exam(r.Context(), req.SessionID, req.ExamType)
	if err != nil {
		respondWithServiceError(w, "Error generating exam report", err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.ExamResponse{Report: report})
}

func (h *GameHandler) Hint(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if !decodeSession(w, r, &req, func() string { return req.SessionID }) {
		return
	}

	hint, err := h.consultations.Hint(r.Context(), req.SessionID)
	if err != nil {
		respondWithServiceError(w, "Error generating hint", err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.HintResponse{Hint: hint})
}

func (h *GameHandler) Photo(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if !decodeSession(w, r, &req, func() string { return req.SessionID }) {
		return
	}

	url, err := h.consultations.Photo(r.Context(), req.SessionID)
	if err != nil {
		respondWithServiceError(w, "Error generating photo", err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.PhotoResponse{ImageURL: url})
}

func (h *GameHandler) Symptoms(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if !decodeSession(w, r, &req, func() string { return req.SessionID }) {
		return
	}

	symptoms, err := h.consultations.Symptoms(r.Context(), req.SessionID)
	if err != nil {
		respondWithServiceError(w, "Error extracting symptoms", err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.SymptomsResponse{Symptoms: symptoms})
}

func (h *GameHandler) Differential(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if !decodeSession(w, r, &req, func() string { return req.SessionID }) {
		return
	}

	diagnoses, err := h.consultations.Differential(r.Context(), req.SessionID)
	if err != nil {
		respondWithServiceError(w, "Error generating differential", err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.DifferentialResponse{Diagnoses: diagnoses})
}

func (h *GameHandler) TrialTreatment(w http.ResponseWriter, r *http.Request) {
	var req models.TrialTreatmentRequest
	if !decodeSession(w, r, &req, func() string { return req.SessionID }) {
		return
	}

	evolution, err := h.consultations.TrialTreatment(r.Context(), req.SessionID, req.Medication)
	if err != nil {
		respondWithServiceError(w, "Error generating trial treatment", err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.TrialTreatmentResponse{Evolution: evolution})
}

// Guess scores the diagnosis and closes the session
func (h *GameHandler) Guess(w http.ResponseWriter, r *http.Request) {
	var req models.GuessRequest
	if !decodeSession(w, r, &req, func() string { return req.SessionID }) {
		return
	}

	resp, err := h.consultations.Guess(r.Context(), req.SessionID, req.GuessedConditionID)
	if err != nil {
		respondWithServiceError(w, "Error evaluating guess", err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *GameHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	var req models.TranscribeRequest
	if !decode(w, r, &req) {
		return
	}

	text, err := h.consultations.Transcribe(r.Context(), req.AudioBase64)
	if err != nil {
		respondWithServiceError(w, "Error transcribing audio", err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.TranscribeResponse{Text: text})
}
