package model

import (
	"time"

	"github.com/google/uuid"
)

// APIResponse is the standard success envelope.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// ListResponse is the standard envelope for paginated list endpoints.
type ListResponse struct {
	Data    any          `json:"data"`
	Total   *int         `json:"total,omitempty"`
	HasMore bool         `json:"has_more"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
	Meta    ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeQuotaExceeded = "QUOTA_EXCEEDED"
	ErrCodeNoMatch       = "NO_MATCH"
	ErrCodeDebateFailed  = "DEBATE_FAILED"
)

// StartDebateRequest is the request body for POST /v1/debates.
// Either both agent ids are set, or Auto is true and the matchmaker picks.
type StartDebateRequest struct {
	AgentAID *uuid.UUID `json:"agent_a_id,omitempty"`
	AgentBID *uuid.UUID `json:"agent_b_id,omitempty"`
	Auto     bool       `json:"auto,omitempty"`
	Topic    string     `json:"topic,omitempty"`
	Stream   bool       `json:"stream,omitempty"`
	// UserID identifies the initiating user for daily-quota accounting.
	UserID uuid.UUID `json:"user_id"`
}

// CreateAgentRequest is the request body for POST /v1/agents.
type CreateAgentRequest struct {
	OwnerID    uuid.UUID `json:"owner_id"`
	Name       string    `json:"name"`
	Persona    string    `json:"persona"`
	Philosophy string    `json:"philosophy"`
	Faction    Faction   `json:"faction"`
}

// QuotaDetails is attached to QUOTA_EXCEEDED errors.
type QuotaDetails struct {
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Uptime   int64  `json:"uptime_seconds"`
}
