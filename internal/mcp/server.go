// Package mcp exposes the knowledge base and question selector as MCP tools
// so agents can ground their own suggestions in it.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/wingmanhq/wingman/internal/knowledge"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server over a knowledge base. Every tool is
// stateless; thread context travels in the tool arguments.
type Server struct {
	kb  *knowledge.Base
	log *zap.Logger
	mcp *server.MCPServer
}

// NewServer creates a new MCP server for kb.
func NewServer(kb *knowledge.Base, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{kb: kb, log: log}

	s.mcp = server.NewMCPServer(
		"wingman",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(rankExamplesTool, s.handleRankExamples)
	s.mcp.AddTool(platformContextTool, s.handlePlatformContext)
	s.mcp.AddTool(listPrinciplesTool, s.handleListPrinciples)
	s.mcp.AddTool(nextQuestionTool, s.handleNextQuestion)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	s.log.Info("mcp server starting on stdio",
		zap.Int("principles", len(s.kb.Principles)),
		zap.Int("conversations", len(s.kb.Conversations)),
	)
	return server.ServeStdio(s.mcp)
}
