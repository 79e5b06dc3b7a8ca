// Package provider adapts chat-completion backends to a single interface.
//
// Adapters never return transport errors. Every outcome is a ChatResult:
// either Success carrying the reply text, or Failure carrying a category
// from a small fixed taxonomy that callers can log, count, and audit
// without inspecting provider-specific payloads.
package provider

import (
	"context"
	"fmt"

	"github.com/ashita-ai/policymesh/internal/decision"
)

// Message roles accepted by both adapters.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ValidRole reports whether role is one of the accepted roles.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// FailureCategory classifies a failed provider call.
type FailureCategory string

const (
	FailureTimeout FailureCategory = "timeout"
	FailureAuth    FailureCategory = "auth_error"
	FailureClient  FailureCategory = "client_error"
	FailureServer  FailureCategory = "server_error"
	FailureUnknown FailureCategory = "unknown"
)

// ChatResult is either Success or Failure.
type ChatResult interface {
	chatResult()
}

// Success carries the assistant reply.
type Success struct {
	Content string
}

// Failure carries a category and an optional human-readable message.
type Failure struct {
	Category FailureCategory
	Message  string
}

func (Success) chatResult() {}
func (Failure) chatResult() {}

// Error returns the message when present, otherwise the category.
func (f Failure) Error() string {
	if f.Message != "" {
		return f.Message
	}
	return string(f.Category)
}

// ChatProvider sends a conversation to a backend and returns its reply.
// An empty model selects the adapter's default.
type ChatProvider interface {
	Chat(ctx context.Context, messages []Message, model string) ChatResult
}

// Registry resolves a routing decision to a concrete adapter.
type Registry struct {
	local ChatProvider
	cloud ChatProvider
}

// NewRegistry returns a registry serving local and cloud with the given adapters.
func NewRegistry(local, cloud ChatProvider) *Registry {
	return &Registry{local: local, cloud: cloud}
}

// For returns the adapter for p.
func (r *Registry) For(p decision.Provider) (ChatProvider, error) {
	var cp ChatProvider
	switch p {
	case decision.ProviderLocal:
		cp = r.local
	case decision.ProviderCloud:
		cp = r.cloud
	}
	if cp == nil {
		return nil, fmt.Errorf("provider: no adapter registered for %q", p)
	}
	return cp, nil
}
