package api

import "github.com/prismbench/search/pkg/models"

// HealthResponse reports process liveness and registered-phase diagnostics.
type HealthResponse struct {
	Status string   `json:"status"`
	Phases []string `json:"phases"`
}

// SessionResponse is the JSON projection of a models.Session.
type SessionResponse struct {
	ID        string `json:"id"`
	TreeName  string `json:"tree_name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func newSessionResponse(s *models.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		TreeName:  s.TreeName,
		CreatedAt: s.CreatedAt.Format(timeFormat),
		UpdatedAt: s.UpdatedAt.Format(timeFormat),
	}
}

// TaskResponse is the JSON projection of a models.Task.
type TaskResponse struct {
	ID        string               `json:"id"`
	SessionID string               `json:"session_id"`
	Phases    []string             `json:"phases"`
	Status    models.TaskStatus    `json:"status"`
	PhaseLog  []models.PhaseStatus `json:"phase_log"`
	Error     string               `json:"error,omitempty"`
}

func newTaskResponse(t *models.Task) TaskResponse {
	return TaskResponse{
		ID:        t.ID,
		SessionID: t.SessionID,
		Phases:    t.Phases,
		Status:    t.Status,
		PhaseLog:  t.PhaseLog,
		Error:     t.Error,
	}
}

// ErrorResponse is the uniform error body for every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

const timeFormat = "2006-01-02T15:04:05Z07:00"
