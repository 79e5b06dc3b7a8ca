// Package model defines the wire types of the HTTP and MCP surfaces.
package model

import (
	"errors"
	"fmt"
	"time"
)

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request body for POST /v1/chat.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	Model    *string       `json:"model,omitempty"`
}

// Validate checks that the request has at least one message and that every
// role is known.
func (r ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return errors.New("messages must contain at least one message")
	}
	for i, m := range r.Messages {
		switch m.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return fmt.Errorf("messages[%d].role must be one of user, assistant, system (got %q)", i, m.Role)
		}
	}
	return nil
}

// LastUserContent returns the content of the last user message, or "" when
// there is none. This is the text the routing policy evaluates.
func (r ChatRequest) LastUserContent() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// ChatResponse is the response body for POST /v1/chat. Exactly one of
// Content and Error is set.
type ChatResponse struct {
	RequestID   string   `json:"request_id"`
	Provider    string   `json:"provider"`
	ReasonCodes []string `json:"reason_codes"`
	Content     *string  `json:"content,omitempty"`
	Error       *string  `json:"error,omitempty"`
}

// RoutesResponse is the effective routing policy returned by GET /v1/routes.
// It carries counts and thresholds only: keyword values, credentials and
// endpoint URLs are never included.
type RoutesResponse struct {
	RuleOrder                   []string `json:"rule_order"`
	SensitivityKeywordCount     int      `json:"sensitivity_keyword_count"`
	CostMaxPromptLengthForLocal int      `json:"cost_max_prompt_length_for_local"`
	DefaultProvider             string   `json:"default_provider"`
	CostUSDMode                 bool     `json:"cost_usd_mode"`
	CostMaxUSDForLocal          *float64 `json:"cost_max_usd_for_local,omitempty"`
	CloudInputUSDPer1KTokens    *float64 `json:"cloud_input_usd_per_1k_tokens,omitempty"`
	CostCharsPerToken           *int     `json:"cost_chars_per_token,omitempty"`
	ReasonCodes                 []string `json:"reason_codes"`
}

// AuditEventView is the read model of an audit event. Prompt flags are
// internal and not exposed.
type AuditEventView struct {
	RequestID       string    `json:"request_id"`
	Decision        string    `json:"decision"`
	Status          string    `json:"status"`
	LatencyMs       float64   `json:"latency_ms"`
	FailureCategory *string   `json:"failure_category"`
	PromptHash      *string   `json:"prompt_hash"`
	PromptLength    *int      `json:"prompt_length"`
	CreatedAt       time.Time `json:"created_at"`
}

// HealthResponse is returned by GET /v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Audit   string `json:"audit"`
	Uptime  int64  `json:"uptime_seconds"`
}

// APIError is the error envelope for every non-2xx response.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in error responses.
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
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)
