// Package ctxutil provides shared context key accessors.
//
// The HTTP server and the MCP server both hand requests to the chat
// service. They tag the context here so chat logs can be correlated with
// the inbound request without chat importing either transport.
package ctxutil

import "context"

type contextKey string

const (
	keyRequestID contextKey = "request_id"
	keyTransport contextKey = "transport"
)

// Transports that reach the chat service.
const (
	TransportHTTP = "http"
	TransportMCP  = "mcp"
)

// WithRequestID returns a new context carrying the inbound request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// RequestIDFromContext extracts the inbound request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(keyRequestID).(string); ok {
		return v
	}
	return ""
}

// WithTransport returns a new context naming the transport a request came in on.
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, keyTransport, transport)
}

// TransportFromContext returns the transport, or "" when untagged.
func TransportFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(keyTransport).(string); ok {
		return v
	}
	return ""
}

// LogAttrs returns slog key/value pairs for the tags present on ctx.
func LogAttrs(ctx context.Context) []any {
	var attrs []any
	if id := RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, "http_request_id", id)
	}
	if tr := TransportFromContext(ctx); tr != "" {
		attrs = append(attrs, "transport", tr)
	}
	return attrs
}
