package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/docqa/internal/vectordb"
)

const emptyStoreHint = "No documents found. The store may be empty; run `docqa ingest` to build it."

// handleRetrieveSources returns the ranked ids of the nearest documents.
func (s *Server) handleRetrieveSources(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	k := request.GetInt("k", 3)
	if k <= 0 {
		k = 3
	}

	retrieval, err := s.store.Query(ctx, query, k)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("retrieval failed: %v", err)), nil
	}
	if retrieval.Empty() {
		return mcp.NewToolResultText(emptyStoreHint), nil
	}

	return mcp.NewToolResultText(vectordb.FormatResults(retrieval.Results, 0)), nil
}

// handleSearchDocuments returns the nearest documents with their text.
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", 3)
	if limit <= 0 {
		limit = 3
	}
	maxChars := request.GetInt("max_chars", 1500)
	if maxChars <= 0 {
		maxChars = -1
	}

	retrieval, err := s.store.Query(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if retrieval.Empty() {
		return mcp.NewToolResultText(emptyStoreHint), nil
	}

	return mcp.NewToolResultText(vectordb.FormatResults(retrieval.Results, maxChars)), nil
}

// handleStoreStats describes the store contents.
func (s *Server) handleStoreStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := s.store.IDs(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing documents failed: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Collection: %s\n", s.collection)
	fmt.Fprintf(&sb, "Source folder: %s\n", s.store.SourceDir())
	fmt.Fprintf(&sb, "Documents: %d\n", s.store.Count())
	for _, id := range ids {
		fmt.Fprintf(&sb, "- %s\n", id)
	}
	return mcp.NewToolResultText(sb.String()), nil
}
