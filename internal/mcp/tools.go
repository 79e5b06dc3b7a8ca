package mcp

import (
	"context"
	"encoding/json"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/policymesh/internal/ctxutil"
	"github.com/ashita-ai/policymesh/internal/model"
)

func (s *Server) registerTools() {
	// policymesh_chat: route a prompt and return the reply with its decision.
	s.mcpServer.AddTool(
		mcplib.NewTool("policymesh_chat",
			mcplib.WithDescription(`Send a prompt through the routing policy and return the reply.

The prompt is routed to the local model when it contains a sensitive
keyword or is cheap enough to answer locally; otherwise it goes to the
default provider. The result includes request_id, provider and
reason_codes. A provider failure is reported in the "error" field, not as
a tool error, and is still audited.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithString("prompt",
				mcplib.Description("The user message to answer. Routing is decided on this text."),
				mcplib.Required(),
			),
			mcplib.WithString("system",
				mcplib.Description("Optional system message sent before the prompt."),
			),
			mcplib.WithString("model",
				mcplib.Description("Optional provider-specific model name. The provider default is used when omitted."),
			),
		),
		s.handleChat,
	)

	// policymesh_routes: effective routing policy.
	s.mcpServer.AddTool(
		mcplib.NewTool("policymesh_routes",
			mcplib.WithDescription("Show the active routing rules: evaluation order, number of sensitivity keywords, cost thresholds and default provider. Keyword values are never returned."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
		),
		s.handleRoutes,
	)

	// policymesh_audit: audit record lookup.
	s.mcpServer.AddTool(
		mcplib.NewTool("policymesh_audit",
			mcplib.WithDescription("Fetch the audit record of a past chat request: decision, status, latency, failure category and prompt hash/length. Prompt text is never stored."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("request_id",
				mcplib.Description("The request_id returned by policymesh_chat or POST /v1/chat."),
				mcplib.Required(),
			),
		),
		s.handleAudit,
	)
}

func (s *Server) handleChat(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	prompt := request.GetString("prompt", "")
	if strings.TrimSpace(prompt) == "" {
		return errorResult("prompt is required"), nil
	}

	req := model.ChatRequest{}
	if system := request.GetString("system", ""); system != "" {
		req.Messages = append(req.Messages, model.ChatMessage{Role: model.RoleSystem, Content: system})
	}
	req.Messages = append(req.Messages, model.ChatMessage{Role: model.RoleUser, Content: prompt})
	if m := request.GetString("model", ""); m != "" {
		req.Model = &m
	}

	resp := s.chatSvc.Handle(ctxutil.WithTransport(ctx, ctxutil.TransportMCP), req)
	s.logger.Debug("mcp: chat handled", "request_id", resp.RequestID, "provider", resp.Provider)
	return jsonResult(resp)
}

func (s *Server) handleRoutes(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return jsonResult(s.chatSvc.Routes())
}

func (s *Server) handleAudit(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	requestID := request.GetString("request_id", "")
	if requestID == "" {
		return errorResult("request_id is required"), nil
	}
	view, ok := s.chatSvc.AuditEvent(ctx, requestID)
	if !ok {
		return errorResult("audit event not found"), nil
	}
	return jsonResult(view)
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("failed to encode result: " + err.Error()), nil
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}
