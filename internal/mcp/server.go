package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/docqa/internal/vectordb"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Store is the read side of the vector store exposed over MCP.
type Store interface {
	vectordb.Retriever
	Count() int
	IDs(ctx context.Context) ([]string, error)
	SourceDir() string
}

// Server wraps an MCP server that exposes retrieval over the ingested
// source documents.
type Server struct {
	store      Store
	collection string
	mcp        *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(store Store, collection string) *Server {
	s := &Server{
		store:      store,
		collection: collection,
	}

	s.mcp = server.NewMCPServer(
		"docqa",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(retrieveSourcesTool, s.handleRetrieveSources)
	s.mcp.AddTool(searchDocumentsTool, s.handleSearchDocuments)
	s.mcp.AddTool(storeStatsTool, s.handleStoreStats)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
