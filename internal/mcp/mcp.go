// Package mcp implements the Model Context Protocol server for Policy Mesh.
//
// The MCP server exposes the chat pipeline, the effective routing policy and
// audit lookups as MCP tools and resources. Every tool call goes through the
// same chat.Service as the HTTP API, so MCP requests are routed, audited and
// counted identically.
package mcp

import (
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/policymesh/internal/service/chat"
)

const instructions = `Policy Mesh routes chat requests to a local or a cloud model.

Use policymesh_chat to send a prompt; the response says which provider
answered and why (reason codes). Use policymesh_routes to see the active
rule order and thresholds before sending sensitive content. Use
policymesh_audit with a request_id to fetch the privacy-safe audit record
of a past request. Audit records never contain prompt text.`

// Server wraps the MCP server with the chat service.
type Server struct {
	mcpServer *mcpserver.MCPServer
	chatSvc   *chat.Service
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all resources and tools.
func New(chatSvc *chat.Service, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		chatSvc: chatSvc,
		logger:  logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"policymesh",
		version,
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithInstructions(instructions),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
