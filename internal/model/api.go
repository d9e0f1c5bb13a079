package model

import (
	"fmt"
	"time"
)

// Field length limits for caller-supplied request fields.
const (
	MaxIdentifierLen = 255
	MaxCommentLen    = 4 * 1024
	MaxProcesses     = 64
)

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// ListResponse is the standard envelope for list endpoints.
type ListResponse struct {
	Data  any          `json:"data"`
	Total int          `json:"total"`
	Limit int          `json:"limit"`
	Meta  ResponseMeta `json:"meta"`
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
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// DetectRequest is the request body for POST /v1/situations/detect.
type DetectRequest struct {
	PrincipalID       string         `json:"principal_id" validate:"max=255,identifier"`
	BusinessProcesses []string       `json:"business_processes,omitempty" validate:"max=64,dive,required"`
	LegacyProcesses   []string       `json:"legacy_processes,omitempty" validate:"max=64"`
	Timeframe         Timeframe      `json:"timeframe" validate:"required"`
	ComparisonType    ComparisonType `json:"comparison_type" validate:"required"`
	Filters           map[string]any `json:"filters,omitempty"`
}

// Validate checks request limits and required fields.
func (r DetectRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("detect request: %w", err)
	}
	return nil
}

// DecisionRequest is the request body for POST /v1/situations/{id}/decisions.
type DecisionRequest struct {
	Decision    DecisionAction `json:"decision"`
	AssigneeID  *string        `json:"assignee_id,omitempty"`
	SnoozeUntil *time.Time     `json:"snooze_until,omitempty"`
	Comment     string         `json:"comment,omitempty"`
}

// SelectRequest is the request body for POST /v1/kpis/select.
type SelectRequest struct {
	PrincipalID       string   `json:"principal_id"`
	BusinessProcesses []string `json:"business_processes,omitempty"`
}

// ResolveResponse is the response for GET /v1/principals/resolve.
type ResolveResponse struct {
	Context  PrincipalContext `json:"context"`
	Strategy string           `json:"strategy"`
	Fallback bool             `json:"fallback"`
}

// SelectResponse is the response for POST /v1/kpis/select.
type SelectResponse struct {
	PrincipalID string          `json:"principal_id"`
	KPIs        []KPIDefinition `json:"kpis"`
	Examined    int             `json:"examined"`
}

// AuthTokenRequest is the request body for POST /auth/token.
type AuthTokenRequest struct {
	ClientID string `json:"client_id"`
	APIKey   string `json:"api_key"`
}

// AuthTokenResponse is the response for POST /auth/token.
type AuthTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	Storage        string `json:"storage"`
	RegistrySource string `json:"registry_source"`
	Profiles       int    `json:"profiles"`
	KPIs           int    `json:"kpis"`
	Uptime         int64  `json:"uptime_seconds"`
}
