package policymesh

import (
	"context"
	"net/http"
)

// ChatProvider is a chat-completion backend. Use WithLocalProvider or
// WithCloudProvider to replace the built-in Ollama or OpenAI adapter.
//
// An empty model selects the provider's default. Return a *ProviderError to
// control the failure category recorded for the call.
type ChatProvider interface {
	Chat(ctx context.Context, messages []Message, model string) (string, error)
}

// RouteRegistrar adds routes to the shared HTTP mux.
type RouteRegistrar func(mux *http.ServeMux)

// Middleware wraps the HTTP handler chain.
type Middleware func(http.Handler) http.Handler
