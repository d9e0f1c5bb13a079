// Package mcp exposes situation detection to MCP clients: tools to detect,
// decide, resolve and list, resources for registry state and open
// situations, and a triage prompt.
package mcp

import (
	"encoding/json"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/beacon/internal/registry"
	"github.com/ashita-ai/beacon/internal/service/detection"
)

// Server wraps the mcp-go server with beacon's service layer.
type Server struct {
	mcpServer *mcpserver.MCPServer
	detection *detection.Service
	registry  *registry.Loader
	logger    *slog.Logger
}

// New creates an MCP server with every tool, resource and prompt registered.
func New(svc *detection.Service, reg *registry.Loader, logger *slog.Logger, version string) *Server {
	s := &Server{
		detection: svc,
		registry:  reg,
		logger:    logger,
	}
	s.mcpServer = mcpserver.NewMCPServer(
		"beacon",
		version,
		mcpserver.WithResourceCapabilities(false, true),
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
	)
	s.registerTools()
	s.registerResources()
	s.registerPrompts()
	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcplib.NewToolResultText(string(data)), nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return mcplib.NewToolResultError(msg)
}
