package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docqa/internal/vectordb"
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Show which source documents a query retrieves",
	Long: `Embeds the query and lists the nearest documents in the vector store,
most similar first. Use it to check retrieval before chatting.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().Int("k", 3, "number of documents to return")
	queryCmd.Flags().Int("snippet", 0, "show this many bytes of each document (-1 for full text)")
	queryCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	k, _ := cmd.Flags().GetInt("k")
	snippet, _ := cmd.Flags().GetInt("snippet")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	if store.Count() == 0 {
		fmt.Println("Vector store is empty. Run `docqa ingest` first.")
		return nil
	}

	retrieval, err := store.Query(ctx, args[0], k)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if jsonOutput {
		return printQueryResultsJSON(retrieval.Results)
	}

	fmt.Print(vectordb.FormatResults(retrieval.Results, snippet))
	return nil
}

type queryResultJSON struct {
	Rank       int     `json:"rank"`
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
	Format     string  `json:"format,omitempty"`
	Preview    string  `json:"preview"`
}

func printQueryResultsJSON(results []vectordb.Result) error {
	out := make([]queryResultJSON, 0, len(results))
	for i, r := range results {
		out = append(out, queryResultJSON{
			Rank:       i + 1,
			ID:         r.Record.ID,
			Similarity: float64(r.Similarity),
			Format:     r.Record.Metadata.Format,
			Preview:    truncate(r.Record.Text, 200),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
