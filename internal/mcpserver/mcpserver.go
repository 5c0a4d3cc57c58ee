// Package mcpserver exposes search and detail lookups as MCP tools, so an
// agent can browse the records table over stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Zerofisher/megatable/pkg/query"
)

// Tool names.
const (
	ToolSearch = "search_records"
	ToolGet    = "get_record"
)

// New builds an MCP server with the record tools registered.
func New(svc query.Service, version string) *server.MCPServer {
	s := server.NewMCPServer("megatable", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	h := &handlers{svc: svc}

	s.AddTool(mcp.NewTool(ToolSearch,
		mcp.WithDescription("Search records by a substring of name or email. Results are ordered by id; "+
			"pass the returned nextCursor as cursor to fetch the next page."),
		mcp.WithString("term", mcp.Description("Substring to match against name or email. Empty lists everything.")),
		mcp.WithString("cursor", mcp.Description("Id of the last record of the previous page.")),
		mcp.WithNumber("limit", mcp.Description(fmt.Sprintf("Page size, 1..%d. Defaults to %d.", query.MaxLimit, query.DefaultLimit))),
		mcp.WithReadOnlyHintAnnotation(true),
	), h.search)

	s.AddTool(mcp.NewTool(ToolGet,
		mcp.WithDescription("Fetch one record with every field, including salary and bio."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record id.")),
		mcp.WithReadOnlyHintAnnotation(true),
	), h.get)

	return s
}

// ServeStdio serves the tools on stdin/stdout until EOF.
func ServeStdio(svc query.Service, version string) error {
	return server.ServeStdio(New(svc, version))
}

type handlers struct {
	svc query.Service
}

func (h *handlers) search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := h.svc.Search(ctx, query.SearchRequest{
		Term:   req.GetString("term", ""),
		Cursor: req.GetString("cursor", ""),
		Limit:  req.GetInt("limit", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"data":       page.Rows,
		"count":      page.Count,
		"nextCursor": page.NextCursor,
		"hasMore":    page.HasMore,
	})
}

func (h *handlers) get(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := h.svc.GetDetail(ctx, id)
	if errors.Is(err, query.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no record with id %q", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(d.Record)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
