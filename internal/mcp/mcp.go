// Package mcp implements the Model Context Protocol server for runsearch.
//
// The server exposes the run search pipeline as MCP tools so that
// MCP-compatible agents can search runs, page through results and backfill
// lineage parents.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/runsearch/internal/model"
)

// Searcher is the slice of the run service the tools need.
type Searcher interface {
	SearchRuns(ctx context.Context, req model.SearchRequest) (*model.SearchResult, error)
	LoadMoreRuns(ctx context.Context, req model.SearchRequest) (*model.SearchResult, error)
	FetchMissingParents(ctx context.Context, res *model.SearchResult) (*model.SearchResult, error)
}

// Server wraps the MCP server with the run search service.
type Server struct {
	mcpServer    *mcpserver.MCPServer
	searcher     Searcher
	fetchParents bool
	logger       *slog.Logger
}

// New creates and configures a new MCP server with all tools. fetchParents
// is the default for the fetch_parents argument of runs_search.
func New(searcher Searcher, fetchParents bool, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		searcher:     searcher,
		fetchParents: fetchParents,
		logger:       logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"runsearch",
		version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)

	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// ServeStdio serves MCP over stdin/stdout until the input is closed.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcpServer)
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
