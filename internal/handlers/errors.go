package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"medgame/internal/llm"
	"medgame/internal/models"
	"medgame/internal/service"
	"medgame/internal/session"
	"medgame/internal/validation"
)

func respondWithError(w http.ResponseWriter, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		log.Printf("%s: %v", logMsg, err)
	}

	respondWithJSON(w, status, models.ErrorResponse{Error: userMsg})
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// respondWithServiceError maps a service error onto a status and message
func respondWithServiceError(w http.ResponseWriter, logMsg string, err error) {
	var validationErr *validation.ValidationError
	var upstreamErr *llm.UpstreamError

	switch {
	case errors.Is(err, session.ErrNotFound):
		respondWithError(w, http.StatusNotFound, ErrSessionNotFound, "", nil)
	case errors.Is(err, session.ErrPerkUsed):
		respondWithError(w, http.StatusConflict, ErrPerkAlreadyUsed, "", nil)
	case errors.Is(err, session.ErrTranscriptFull):
		respondWithError(w, http.StatusConflict, ErrTranscriptLimit, "", nil)
	case errors.Is(err, service.ErrInvalidLevel):
		respondWithError(w, http.StatusBadRequest, ErrInvalidLevel, "", nil)
	case errors.As(err, &validationErr):
		respondWithError(w, http.StatusBadRequest, validationErr.Message, "", nil)
	case errors.As(err, &upstreamErr):
		respondWithError(w, http.StatusBadGateway, ErrUpstreamUnavailable, logMsg, err)
	default:
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, logMsg, err)
	}
}
