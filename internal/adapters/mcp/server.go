package mcpadapter

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/manual-assistant/internal/core/ports"
)

const serverName = "manual-assistant"

// Expander exposes query expansion without retrieval.
type Expander interface {
	Expand(query string) []string
}

// Server publishes the manual assistant as MCP tools.
type Server struct {
	chat     ports.ChatService
	prompts  ports.PromptService
	expander Expander
	logger   *slog.Logger
	mcp      *server.MCPServer
}

func NewServer(version string, chat ports.ChatService, prompts ports.PromptService, expander Expander, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		chat:     chat,
		prompts:  prompts,
		expander: expander,
		logger:   logger,
		mcp:      server.NewMCPServer(serverName, version, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool("ask_manual",
		mcp.WithDescription("Answer a question about the product manuals, grounded in retrieved manual passages"),
		mcp.WithString("question", mcp.Required(), mcp.Description("The user's question")),
		mcp.WithString("session_id", mcp.Description("Optional conversation id; a new one is assigned when empty")),
	), s.askManual)

	s.mcp.AddTool(mcp.NewTool("expand_query",
		mcp.WithDescription("List the search terms a question expands to"),
		mcp.WithString("question", mcp.Required(), mcp.Description("The user's question")),
	), s.expandQuery)

	s.mcp.AddTool(mcp.NewTool("build_prompt",
		mcp.WithDescription("Return the grounding prompt for a question without generating an answer"),
		mcp.WithString("question", mcp.Required(), mcp.Description("The user's question")),
	), s.buildPrompt)

	return s
}

func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio blocks until stdin is closed.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) askManual(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	reply, err := s.chat.Ask(ctx, request.GetString("session_id", ""), question)
	if err != nil {
		s.logger.Warn("mcp_tool_failed", "tool", "ask_manual", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(reply.Answer), nil
}

func (s *Server) expandQuery(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(strings.Join(s.expander.Expand(question), "\n")), nil
}

func (s *Server) buildPrompt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	prompt, err := s.prompts.BuildPrompt(ctx, question)
	if err != nil {
		s.logger.Warn("mcp_tool_failed", "tool", "build_prompt", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(prompt), nil
}
