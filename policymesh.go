// Package policymesh is the embeddable Policy Mesh server.
//
// An App routes chat requests between a local and a cloud model with a
// deterministic policy, records a privacy-safe audit event per request and
// exposes the HTTP API, MCP endpoint and browser console on one port.
//
//	app, err := policymesh.New(policymesh.WithVersion("1.2.0"))
//	if err != nil { ... }
//	err = app.Run(ctx)
package policymesh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/policymesh/api"
	"github.com/ashita-ai/policymesh/internal/config"
	"github.com/ashita-ai/policymesh/internal/mcp"
	"github.com/ashita-ai/policymesh/internal/metrics"
	"github.com/ashita-ai/policymesh/internal/server"
	"github.com/ashita-ai/policymesh/internal/service/audit"
	"github.com/ashita-ai/policymesh/internal/service/chat"
	"github.com/ashita-ai/policymesh/internal/service/provider"
	"github.com/ashita-ai/policymesh/internal/storage"
	"github.com/ashita-ai/policymesh/internal/telemetry"
	"github.com/ashita-ai/policymesh/migrations"
	"github.com/ashita-ai/policymesh/ui"
)

// App is a fully wired Policy Mesh server.
type App struct {
	cfg          config.Config
	store        storage.Store // nil when the audit trail is disabled
	srv          *server.Server
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New loads configuration, connects audit storage, builds the providers and
// returns an App ready to Run. Configuration comes from the environment (and
// a .env file when present); options override it.
func New(opts ...Option) (*App, error) {
	o := &resolvedOptions{version: "dev"}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Non-fatal; production won't have one.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("policymesh: load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != nil {
		cfg = cfg.WithDatabaseURL(*o.databaseURL)
	}

	ctx := context.Background()

	otelShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		Insecure:    cfg.OTELInsecure,
		ServiceName: cfg.ServiceName,
		Version:     o.version,
	})
	if err != nil {
		return nil, fmt.Errorf("policymesh: telemetry: %w", err)
	}

	var store storage.Store
	if cfg.AuditStorageConfigured() {
		store, err = openAuditStore(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			_ = otelShutdown(ctx)
			return nil, err
		}
		logger.Info("audit: enabled", "backend", store.Backend())
	} else {
		logger.Info("audit: disabled")
	}

	policy := config.EnvPolicySource
	if o.policy != nil {
		policy = config.StaticPolicySource(o.policy.toConfig())
	}

	rec := metrics.NewRecorder()
	var auditRepo audit.Repository
	if store != nil {
		auditRepo = store
	}
	auditSvc := audit.NewService(auditRepo, cfg.AuditStorageConfigured(), logger)

	chatSvc := chat.New(chat.Deps{
		Policy:            policy,
		Registry:          newRegistry(cfg, o, logger),
		Audit:             auditSvc,
		Metrics:           rec,
		Logger:            logger,
		AuditWriteTimeout: cfg.AuditWriteTimeout,
	})

	uiFS, err := ui.DistFS()
	if err != nil {
		if store != nil {
			store.Close(ctx)
		}
		_ = otelShutdown(ctx)
		return nil, fmt.Errorf("policymesh: ui: %w", err)
	}

	srvCfg := server.ServerConfig{
		ChatSvc:             chatSvc,
		Logger:              logger,
		Metrics:             rec,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             o.version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		UIFS:                uiFS,
		OpenAPISpec:         api.OpenAPISpec,
	}
	if cfg.MCPEnabled {
		srvCfg.MCPServer = mcp.New(chatSvc, logger, o.version).MCPServer()
	}
	for _, rr := range o.routeRegistrars {
		srvCfg.RouteRegistrars = append(srvCfg.RouteRegistrars, rr)
	}
	for _, mw := range o.middlewares {
		srvCfg.Middlewares = append(srvCfg.Middlewares, mw)
	}

	return &App{
		cfg:          cfg,
		store:        store,
		srv:          server.New(srvCfg),
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      o.version,
	}, nil
}

// openAuditStore connects to databaseURL and applies the backend's migrations.
// A configured but unreachable database fails startup: an operator who set
// DATABASE_URL expects an audit trail.
func openAuditStore(ctx context.Context, databaseURL string, logger *slog.Logger) (storage.Store, error) {
	store, err := storage.Open(ctx, databaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("policymesh: storage: %w", err)
	}
	migs := migrations.SQLite
	if store.Backend() == storage.BackendPostgres {
		migs = migrations.Postgres
	}
	if err := store.RunMigrations(ctx, migs); err != nil {
		store.Close(ctx)
		return nil, fmt.Errorf("policymesh: migrations: %w", err)
	}
	return store, nil
}

// newRegistry builds the adapters for both decisions. Options win over the
// configured Ollama and OpenAI endpoints.
func newRegistry(cfg config.Config, o *resolvedOptions, logger *slog.Logger) *provider.Registry {
	var local, cloud provider.ChatProvider
	if o.localProvider != nil {
		local = providerAdapter{p: o.localProvider}
	} else {
		local = provider.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.OllamaTimeout)
		logger.Info("provider: local", "kind", "ollama", "model", cfg.OllamaModel, "timeout", cfg.OllamaTimeout)
	}
	if o.cloudProvider != nil {
		cloud = providerAdapter{p: o.cloudProvider}
	} else {
		cloud = provider.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.OpenAITimeout)
		if cfg.OpenAIAPIKey == "" {
			logger.Warn("provider: OPENAI_API_KEY is empty, cloud requests will fail with auth_error")
		}
		logger.Info("provider: cloud", "kind", "openai", "model", cfg.OpenAIModel, "timeout", cfg.OpenAITimeout)
	}
	return provider.NewRegistry(local, cloud)
}

// Handler returns the root HTTP handler. Useful for tests and for mounting
// the API inside another server.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// Run starts the HTTP server and blocks until ctx is cancelled or the server
// fails. Shutdown runs before Run returns in both cases.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("policymesh starting", "version", a.version, "port", a.cfg.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownErr := a.Shutdown(context.Background())
	if runErr != nil {
		return fmt.Errorf("policymesh: http server: %w", runErr)
	}
	return shutdownErr
}

// Shutdown drains in-flight HTTP requests, then closes audit storage and
// flushes telemetry. In-flight chat requests finish their audit writes
// before the store closes.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("policymesh shutting down")

	httpCtx, cancel := contextWithOptionalTimeout(ctx, a.cfg.ShutdownTimeout)
	err := a.srv.Shutdown(httpCtx)
	cancel()
	if err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}

	if a.store != nil {
		a.store.Close(context.Background())
	}
	_ = a.otelShutdown(context.Background())

	a.logger.Info("policymesh stopped")
	if err != nil {
		return fmt.Errorf("policymesh: http shutdown: %w", err)
	}
	return nil
}

func contextWithOptionalTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

// providerAdapter lets a public ChatProvider serve as an internal adapter.
type providerAdapter struct {
	p ChatProvider
}

func (a providerAdapter) Chat(ctx context.Context, messages []provider.Message, model string) provider.ChatResult {
	msgs := make([]Message, len(messages))
	for i, m := range messages {
		msgs[i] = Message{Role: m.Role, Content: m.Content}
	}
	content, err := a.p.Chat(ctx, msgs, model)
	if err == nil {
		return provider.Success{Content: content}
	}

	var pe *ProviderError
	switch {
	case errors.As(err, &pe):
		category := provider.FailureCategory(pe.Category)
		if category == "" {
			category = provider.FailureUnknown
		}
		return provider.Failure{Category: category, Message: pe.Message}
	case errors.Is(err, context.DeadlineExceeded):
		return provider.Failure{Category: provider.FailureTimeout, Message: err.Error()}
	default:
		return provider.Failure{Category: provider.FailureUnknown, Message: err.Error()}
	}
}
