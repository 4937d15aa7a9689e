package mcp

import "github.com/mark3labs/mcp-go/mcp"

// retrieveSourcesTool defines the retrieve_sources MCP tool.
var retrieveSourcesTool = mcp.NewTool("retrieve_sources",
	mcp.WithDescription("List the source documents most similar to a query, most similar first. Returns file names and similarity scores only."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language query"),
	),
	mcp.WithNumber("k",
		mcp.Description("Number of documents to return (default 3)"),
	),
)

// searchDocumentsTool defines the search_documents MCP tool.
var searchDocumentsTool = mcp.NewTool("search_documents",
	mcp.WithDescription("Search the ingested course documents semantically and return the matching text."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of documents to return (default 3)"),
	),
	mcp.WithNumber("max_chars",
		mcp.Description("Truncate each document's text to this many bytes; 0 returns full text (default 1500)"),
	),
)

// storeStatsTool defines the store_stats MCP tool.
var storeStatsTool = mcp.NewTool("store_stats",
	mcp.WithDescription("Describe the vector store: collection, source folder, and the ids of all ingested documents."),
)
