package mcp

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ragkit/ragserver/internal/agent"
	"github.com/ragkit/ragserver/internal/index"
	"github.com/ragkit/ragserver/internal/retriever"
)

// Server wraps the MCP server with its dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies.
type Config struct {
	Agent    *agent.Service
	Embedder retriever.Embedder
	Store    index.Store
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "ragserver",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_question",
		Description: "Answer a natural-language question using the indexed documents, with source attribution. Pass session_id to continue a conversation.",
	}, makeAskHandler(cfg.Agent))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_chunks",
		Description: "Semantic search over the indexed document chunks. Returns matching chunk text with similarity scores; no answer is generated.",
	}, makeSearchHandler(cfg.Embedder, cfg.Store))

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until the client
// disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns a Streamable HTTP handler for the server, mountable
// on any ServeMux path. Stateless mode skips session management; both tools
// are single-shot, so the answering server mounts it stateless.
func (s *Server) HTTPHandler(stateless bool) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{Stateless: stateless})
}
