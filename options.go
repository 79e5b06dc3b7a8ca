package policymesh

import (
	"log/slog"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	port            int
	databaseURL     *string
	logger          *slog.Logger
	version         string
	policy          *Policy
	localProvider   ChatProvider
	cloudProvider   ChatProvider
	routeRegistrars []RouteRegistrar
	middlewares     []Middleware
}

// WithPort overrides the TCP port from config (POLICYMESH_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the audit database URL from config (DATABASE_URL
// env var). An empty string disables the audit trail.
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = &url }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithPolicy pins the routing policy. Without it the policy is re-read from
// the environment on every request.
func WithPolicy(p Policy) Option {
	return func(o *resolvedOptions) { o.policy = &p }
}

// WithLocalProvider replaces the Ollama adapter that serves local decisions.
func WithLocalProvider(p ChatProvider) Option {
	return func(o *resolvedOptions) { o.localProvider = p }
}

// WithCloudProvider replaces the OpenAI adapter that serves cloud decisions.
func WithCloudProvider(p ChatProvider) Option {
	return func(o *resolvedOptions) { o.cloudProvider = p }
}

// WithExtraRoutes registers additional routes on the shared HTTP mux.
// Registrars are called in registration order.
func WithExtraRoutes(fn RouteRegistrar) Option {
	return func(o *resolvedOptions) { o.routeRegistrars = append(o.routeRegistrars, fn) }
}

// WithMiddleware registers an outermost HTTP middleware. The first-registered
// middleware is called first by every request.
func WithMiddleware(mw Middleware) Option {
	return func(o *resolvedOptions) { o.middlewares = append(o.middlewares, mw) }
}
