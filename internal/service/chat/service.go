// Package chat runs the request pipeline behind POST /v1/chat.
//
// Both the HTTP API and the MCP server delegate here so that every chat
// request is decided, dispatched, audited and counted the same way:
//
//	request id → policy decision → provider call (timed) → audit write → metrics → response
//
// The provider call is the only stage bounded by the caller's context. The
// audit write runs on a detached context with its own timeout, so a client
// that disconnects after the provider replied still leaves an audit record.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/policymesh/internal/config"
	"github.com/ashita-ai/policymesh/internal/ctxutil"
	"github.com/ashita-ai/policymesh/internal/decision"
	"github.com/ashita-ai/policymesh/internal/metrics"
	"github.com/ashita-ai/policymesh/internal/model"
	"github.com/ashita-ai/policymesh/internal/service/audit"
	"github.com/ashita-ai/policymesh/internal/service/provider"
	"github.com/ashita-ai/policymesh/internal/telemetry"
)

const defaultAuditWriteTimeout = 5 * time.Second

// Deps holds the collaborators of a Service. Policy and Registry are
// required; the rest may be nil.
type Deps struct {
	Policy            config.PolicySource
	Registry          *provider.Registry
	Audit             *audit.Service
	Metrics           *metrics.Recorder
	Logger            *slog.Logger
	AuditWriteTimeout time.Duration
}

// Service orchestrates chat requests.
type Service struct {
	policy       config.PolicySource
	registry     *provider.Registry
	audit        *audit.Service
	metrics      *metrics.Recorder
	logger       *slog.Logger
	auditTimeout time.Duration
	newID        func() string

	tracer           trace.Tracer
	providerDuration metric.Float64Histogram
}

// New creates a chat Service.
func New(d Deps) *Service {
	if d.Policy == nil {
		d.Policy = config.EnvPolicySource
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.AuditWriteTimeout <= 0 {
		d.AuditWriteTimeout = defaultAuditWriteTimeout
	}
	meter := telemetry.Meter("policymesh/chat")
	provDur, _ := meter.Float64Histogram("policymesh.provider.duration",
		metric.WithDescription("Time spent waiting on the selected provider (ms)"),
		metric.WithUnit("ms"),
	)
	return &Service{
		policy:           d.Policy,
		registry:         d.Registry,
		audit:            d.Audit,
		metrics:          d.Metrics,
		logger:           d.Logger,
		auditTimeout:     d.AuditWriteTimeout,
		newID:            func() string { return uuid.New().String() },
		tracer:           telemetry.Tracer("policymesh/chat"),
		providerDuration: provDur,
	}
}

// Handle runs one chat request through the pipeline. Provider failures are
// reported in the response, never as an error: the caller always gets the
// request id, provider and reason codes back.
//
// req must already have passed model.ChatRequest.Validate.
func (s *Service) Handle(ctx context.Context, req model.ChatRequest) model.ChatResponse {
	requestID := s.newID()

	ctx, span := s.tracer.Start(ctx, "chat.handle")
	defer span.End()
	span.SetAttributes(attribute.String("policymesh.request_id", requestID))

	// 1. Decide on the last user turn.
	prompt := req.LastUserContent()
	result := decision.Decide(prompt, utf8.RuneCountInString(prompt), s.policy())
	span.SetAttributes(
		attribute.String("policymesh.provider", string(result.Provider)),
		attribute.String("policymesh.reason_codes", strings.Join(result.ReasonCodes, ",")),
	)

	// 2. Dispatch, timing only the provider call.
	start := time.Now()
	chatResult := s.dispatch(ctx, result.Provider, req)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0
	s.providerDuration.Record(ctx, latencyMs,
		metric.WithAttributes(attribute.String("provider", string(result.Provider))))

	// 3. Audit.
	rc := audit.NewRequestContext(requestID, result.String(), latencyMs).WithPrompt(prompt)
	var content, errMsg *string
	switch r := chatResult.(type) {
	case provider.Success:
		c := r.Content
		content = &c
	case provider.Failure:
		category := r.Category
		if category == "" {
			category = provider.FailureUnknown
		}
		rc = rc.WithFailure(string(category))
		msg := r.Error()
		errMsg = &msg
		span.SetStatus(codes.Error, string(category))
		attrs := append([]any{
			"request_id", requestID,
			"provider", result.Provider,
			"failure_category", category,
			"latency_ms", latencyMs,
		}, ctxutil.LogAttrs(ctx)...)
		s.logger.Warn("chat: provider call failed", attrs...)
	}
	s.persist(ctx, rc)

	// 4. Metrics.
	s.metrics.RecordChatRequest(string(result.Provider), string(rc.Status), latencyMs)

	return model.ChatResponse{
		RequestID:   requestID,
		Provider:    string(result.Provider),
		ReasonCodes: result.ReasonCodes,
		Content:     content,
		Error:       errMsg,
	}
}

func (s *Service) dispatch(ctx context.Context, p decision.Provider, req model.ChatRequest) provider.ChatResult {
	ctx, span := s.tracer.Start(ctx, "provider.chat",
		trace.WithAttributes(attribute.String("policymesh.provider", string(p))))
	defer span.End()

	var cp provider.ChatProvider
	if s.registry != nil {
		var err error
		cp, err = s.registry.For(p)
		if err != nil {
			return provider.Failure{Category: provider.FailureUnknown, Message: err.Error()}
		}
	}
	if cp == nil {
		return provider.Failure{Category: provider.FailureUnknown, Message: "no provider configured"}
	}

	messages := make([]provider.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = provider.Message{Role: m.Role, Content: m.Content}
	}
	var modelName string
	if req.Model != nil {
		modelName = *req.Model
	}

	res := cp.Chat(ctx, messages, modelName)
	if f, ok := res.(provider.Failure); ok {
		span.SetStatus(codes.Error, string(f.Category))
	}
	return res
}

// persist writes the audit record. A failed write is logged and counted but
// never changes the chat response.
func (s *Service) persist(ctx context.Context, rc audit.RequestContext) {
	if s.audit == nil || !s.audit.Enabled() {
		return
	}
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.auditTimeout)
	defer cancel()

	auditCtx, span := s.tracer.Start(auditCtx, "audit.persist")
	defer span.End()

	if err := s.audit.Persist(auditCtx, rc); err != nil {
		span.SetStatus(codes.Error, "audit write failed")
		attrs := append([]any{"request_id", rc.RequestID, "error", err}, ctxutil.LogAttrs(ctx)...)
		s.logger.Error("chat: audit write failed", attrs...)
		s.metrics.RecordAuditWriteFailure()
	}
}

// Routes returns the effective routing policy. Keyword values are reduced to
// a count.
func (s *Service) Routes() model.RoutesResponse {
	cfg := s.policy()
	resp := model.RoutesResponse{
		RuleOrder:                   decision.RuleOrder(),
		SensitivityKeywordCount:     len(cfg.SensitivityKeywords),
		CostMaxPromptLengthForLocal: cfg.CostMaxPromptLengthForLocal,
		DefaultProvider:             string(cfg.DefaultProvider),
		CostUSDMode:                 cfg.USDModeActive(),
		ReasonCodes:                 append([]string(nil), decision.AllReasonCodes...),
	}
	if resp.DefaultProvider == "" {
		resp.DefaultProvider = string(decision.DefaultDefaultProvider)
	}
	if resp.CostUSDMode {
		maxUSD := *cfg.CostMaxUSDForLocal
		price := *cfg.CloudInputUSDPer1KTokens
		cpt := cfg.CostCharsPerToken
		if cpt <= 0 {
			cpt = decision.DefaultCharsPerToken
		}
		resp.CostMaxUSDForLocal = &maxUSD
		resp.CloudInputUSDPer1KTokens = &price
		resp.CostCharsPerToken = &cpt
	}
	return resp
}

// AuditEvent returns the safe view of the audit record for requestID.
// Missing records, disabled auditing and storage errors all report false.
func (s *Service) AuditEvent(ctx context.Context, requestID string) (model.AuditEventView, bool) {
	if s.audit == nil {
		return model.AuditEventView{}, false
	}
	e, ok := s.audit.Get(ctx, requestID)
	if !ok {
		return model.AuditEventView{}, false
	}
	return model.AuditEventView{
		RequestID:       e.RequestID,
		Decision:        e.Decision,
		Status:          string(e.Status),
		LatencyMs:       e.LatencyMs,
		FailureCategory: e.FailureCategory,
		PromptHash:      e.PromptHash,
		PromptLength:    e.PromptLength,
		CreatedAt:       e.CreatedAt,
	}, true
}

// AuditStatus describes audit storage for the health endpoint: "disabled",
// "ok" or "unhealthy".
func (s *Service) AuditStatus(ctx context.Context) string {
	if s.audit == nil || !s.audit.Enabled() {
		return "disabled"
	}
	if err := s.audit.Healthy(ctx); err != nil {
		return "unhealthy"
	}
	return "ok"
}
