// Package audit builds and persists privacy-safe records of routing
// decisions. Records carry a hash and length of the prompt, never the
// prompt or the reply.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
	"unicode/utf8"
)

// Status is the outcome of a chat request.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// RequestContext is the audit metadata for one chat request. It is a value
// type; copies are independent and the With* methods return new values.
type RequestContext struct {
	RequestID       string
	Decision        string
	Status          Status
	LatencyMs       float64
	FailureCategory *string // set iff Status is failure
	PromptHash      *string
	PromptLength    *int
	PromptFlags     *string
}

// NewRequestContext returns a context for a successful request.
func NewRequestContext(requestID, decision string, latencyMs float64) RequestContext {
	return RequestContext{
		RequestID: requestID,
		Decision:  decision,
		Status:    StatusSuccess,
		LatencyMs: latencyMs,
	}
}

// WithFailure marks the context as failed with the given category.
func (c RequestContext) WithFailure(category string) RequestContext {
	c.Status = StatusFailure
	c.FailureCategory = &category
	return c
}

// WithPrompt records the hash and character length of prompt. An empty
// prompt leaves both unset.
func (c RequestContext) WithPrompt(prompt string) RequestContext {
	if prompt == "" {
		return c
	}
	h := PromptHash(prompt)
	n := utf8.RuneCountInString(prompt)
	c.PromptHash = &h
	c.PromptLength = &n
	return c
}

// WithFlags attaches opaque prompt flags.
func (c RequestContext) WithFlags(flags string) RequestContext {
	c.PromptFlags = &flags
	return c
}

// PromptHash returns the lowercase hex SHA-256 of prompt's UTF-8 bytes.
func PromptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// Event is the persisted form of a RequestContext.
type Event struct {
	ID              int64
	RequestID       string
	Decision        string
	Status          Status
	LatencyMs       float64
	FailureCategory *string
	PromptHash      *string
	PromptLength    *int
	PromptFlags     *string
	CreatedAt       time.Time
}

// BuildEvent copies every field of c into a new Event stamped with now.
// ID is assigned by the repository.
func BuildEvent(c RequestContext, now time.Time) Event {
	return Event{
		RequestID:       c.RequestID,
		Decision:        c.Decision,
		Status:          c.Status,
		LatencyMs:       c.LatencyMs,
		FailureCategory: c.FailureCategory,
		PromptHash:      c.PromptHash,
		PromptLength:    c.PromptLength,
		PromptFlags:     c.PromptFlags,
		CreatedAt:       now.UTC(),
	}
}
