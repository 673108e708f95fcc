// Package toolproto implements the tool-call protocol transport adapter
// (spec.md §4.8, §6.2, C10): it exposes add_event and query as callable
// tools over mark3labs/mcp-go, in either stdio mode (no configured port)
// or HTTP/SSE mode (port configured), per spec.md's transport-selection
// rule. Grounded on the teacher's go.mod dependency on mark3labs/mcp-go;
// the teacher's own hand-rolled internal/mcp/server.go predates that
// dependency being wired in, so this adapter follows the library's public
// API rather than the teacher's bespoke JSON-RPC loop.
package toolproto

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sorrowscry86/causal-memory-core/internal/logging"
)

const subsystem = "toolproto"

// banner is embedded in both tool descriptions, instructing the calling
// agent on the intended ingest/recall rhythm (spec.md §4.8).
const banner = "Query this memory for relevant context before acting, and record significant events after acting."

// Server wraps an MCP server exposing add_event and query.
type Server struct {
	mcp *server.MCPServer
}

// New builds a Server bound to the given facade callbacks.
func New(name, version string, addEvent func(ctx context.Context, effectText string) (int64, error), query func(ctx context.Context, queryText string) (string, error)) *Server {
	m := server.NewMCPServer(name, version)

	addEventTool := mcp.NewTool("add_event",
		mcp.WithDescription("Record a new event in causal memory. "+banner),
		mcp.WithString("effect", mcp.Required(), mcp.Description("The text describing what happened.")),
	)
	m.AddTool(addEventTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		effect, ok := req.Params.Arguments["effect"].(string)
		if !ok || effect == "" {
			return mcp.NewToolResultError("effect is required"), nil
		}
		id, err := addEvent(ctx, effect)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Recorded event %d.", id)), nil
	})

	queryTool := mcp.NewTool("query",
		mcp.WithDescription("Recall the causal chain of events relevant to a query. "+banner),
		mcp.WithString("query", mcp.Required(), mcp.Description("What to recall context about.")),
	)
	m.AddTool(queryTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		queryText, ok := req.Params.Arguments["query"].(string)
		if !ok || queryText == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		narrative, err := query(ctx, queryText)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(narrative), nil
	})

	return &Server{mcp: m}
}

// ServeStdio runs the line-oriented stdio mode (spec.md §6.2, no configured
// port).
func (s *Server) ServeStdio() error {
	logging.Info(subsystem, "serving tool protocol over stdio")
	return server.ServeStdio(s.mcp)
}

// ServeSSE runs the HTTP/SSE mode, binding `/`, `/sse`, and `/messages`
// (spec.md §6.2, port configured).
func (s *Server) ServeSSE(addr string) error {
	logging.Info(subsystem, "serving tool protocol over HTTP/SSE on %s", addr)
	sse := server.NewSSEServer(s.mcp)
	return sse.Start(addr)
}
