package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashita-ai/policymesh/internal/ctxutil"
	"github.com/ashita-ai/policymesh/internal/model"
	"github.com/ashita-ai/policymesh/internal/service/chat"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	chatSvc             *chat.Service
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	openapiSpec         []byte
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): OpenAPISpec.
type HandlersDeps struct {
	ChatSvc             *chat.Service
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		chatSvc:             d.ChatSvc,
		logger:              logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		openapiSpec:         d.OpenAPISpec,
	}
}

// HandleChat handles POST /v1/chat. Provider failures still return 200; the
// body carries the error and the audit record carries the category.
func (h *Handlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, model.ErrCodeInvalidInput, err.Error())
			return
		}
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	resp := h.chatSvc.Handle(ctxutil.WithTransport(r.Context(), ctxutil.TransportHTTP), req)
	w.Header().Set("X-Request-ID", resp.RequestID)
	writeJSON(w, http.StatusOK, resp)
}

// HandleRoutes handles GET /v1/routes.
func (h *Handlers) HandleRoutes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chatSvc.Routes())
}

// HandleAuditEvent handles GET /v1/audit/{request_id}. Every miss is the
// same 404 so callers cannot tell a disabled audit trail from an unknown id.
func (h *Handlers) HandleAuditEvent(w http.ResponseWriter, r *http.Request) {
	view, ok := h.chatSvc.AuditEvent(r.Context(), r.PathValue("request_id"))
	if !ok {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "audit event not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleHealth handles GET /v1/health. The process is healthy while it can
// serve requests; an unreachable audit store is reported but does not fail
// the probe because chat keeps working without it.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{
		Status:  "ok",
		Version: h.version,
		Audit:   h.chatSvc.AuditStatus(r.Context()),
		Uptime:  int64(time.Since(h.startedAt).Seconds()),
	})
}

// HandleOpenAPISpec serves the embedded OpenAPI specification.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}
