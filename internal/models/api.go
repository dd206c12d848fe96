package models

// StartRequest begins a consultation on a level
type StartRequest struct {
	LevelID int `json:"levelId"`
}

// ModifierView is the public part of a patient modifier
type ModifierView struct {
	Category      string `json:"category"`
	CategoryLabel string `json:"categoryLabel"`
	CategoryIcon  string `json:"categoryIcon"`
	ID            string `json:"id"`
	Name          string `json:"name"`
}

// PatientView is everything the player may see about the patient
type PatientView struct {
	Name        string         `json:"name"`
	Age         int            `json:"age"`
	Gender      string         `json:"gender"`
	Antecedents string         `json:"antecedents"`
	Description string         `json:"description"`
	Modifiers   []ModifierView `json:"modifiers"`
}

type StartResponse struct {
	SessionID string      `json:"sessionId"`
	Patient   PatientView `json:"patient"`
}

// SessionRequest is the body of every action that only needs a session
type SessionRequest struct {
	SessionID string `json:"sessionId"`
}

type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// ChatResponse carries either the patient reply or a guardrail rejection
type ChatResponse struct {
	Message         string `json:"message,omitempty"`
	GuardrailFailed bool   `json:"guardrailFailed,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

type ExamRequest struct {
	SessionID string `json:"sessionId"`
	ExamType  string `json:"examType"`
}

type ExamResponse struct {
	Report string `json:"report"`
}

type HintResponse struct {
	Hint string `json:"hint"`
}

type PhotoResponse struct {
	ImageURL string `json:"imageUrl"`
}

type SymptomsResponse struct {
	Symptoms string `json:"symptoms"`
}

type DifferentialResponse struct {
	Diagnoses string `json:"diagnoses"`
}

type TrialTreatmentRequest struct {
	SessionID  string `json:"sessionId"`
	Medication string `json:"medication"`
}

type TrialTreatmentResponse struct {
	Evolution string `json:"evolution"`
}

type GuessRequest struct {
	SessionID          string `json:"sessionId"`
	GuessedConditionID string `json:"guessedConditionId"`
}

type GuessResponse struct {
	IsCorrect            bool   `json:"isCorrect"`
	CorrectConditionID   string `json:"correctConditionId"`
	CorrectConditionName string `json:"correctConditionName"`
	Feedback             string `json:"feedback"`
}

type TranscribeRequest struct {
	AudioBase64 string `json:"audioBase64"`
}

type TranscribeResponse struct {
	Text string `json:"text"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Provider string `json:"provider"`
}
