package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/policymesh/internal/decision"
)

const (
	routesURI        = "policymesh://policy/routes"
	reasonCodesURI   = "policymesh://policy/reason-codes"
	auditURIPrefix   = "policymesh://audit/"
	auditURITemplate = auditURIPrefix + "{request_id}"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			routesURI,
			"Routing Policy",
			mcplib.WithResourceDescription("Effective routing rules and thresholds"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleRoutesResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			reasonCodesURI,
			"Reason Codes",
			mcplib.WithResourceDescription("Every reason code a routing decision can carry"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleReasonCodes,
	)

	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			auditURITemplate,
			"Audit Record",
			mcplib.WithTemplateDescription("Audit record for a chat request"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleAuditResource,
	)
}

func (s *Server) handleRoutesResource(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	return jsonResource(routesURI, s.chatSvc.Routes())
}

func (s *Server) handleReasonCodes(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	return jsonResource(reasonCodesURI, map[string]any{
		"rule_order":   decision.RuleOrder(),
		"reason_codes": decision.AllReasonCodes,
	})
}

func (s *Server) handleAuditResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	requestID := strings.TrimPrefix(uri, auditURIPrefix)
	if requestID == uri || requestID == "" || strings.Contains(requestID, "/") {
		return nil, fmt.Errorf("mcp: invalid audit URI: %s", uri)
	}
	view, ok := s.chatSvc.AuditEvent(ctx, requestID)
	if !ok {
		return nil, fmt.Errorf("mcp: audit event not found: %s", requestID)
	}
	return jsonResource(uri, view)
}

func jsonResource(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal %s: %w", uri, err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
