package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/docqa/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long: `Starts a Model Context Protocol (MCP) server on stdio, exposing document
retrieval tools for AI agents. The server only reads the vector store; run
` + "`docqa ingest`" + ` first to fill it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := openStore(context.Background(), cfg)
		if err != nil {
			return err
		}
		if store.Count() == 0 {
			fmt.Fprintf(os.Stderr, "Warning: vector store %s is empty. Run `docqa ingest` first.\n", store.Path())
		}

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "docqa MCP server started on stdio (collection=%s, documents=%d)\n", cfg.Collection, store.Count())

		return mcpserver.NewServer(store, cfg.Collection).Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
