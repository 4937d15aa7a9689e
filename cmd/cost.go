package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docqa/internal/budget"
	"github.com/ziadkadry99/docqa/internal/llm"
	"github.com/ziadkadry99/docqa/internal/loader"
	"github.com/ziadkadry99/docqa/internal/walker"
)

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Estimate the embedding cost of ingesting the source folder",
	Long:  `Performs a dry run that extracts every source document, estimates its tokens, and calculates the expected embedding cost without making any API calls.`,
	RunE:  runCost,
}

func init() {
	rootCmd.AddCommand(costCmd)
}

func runCost(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	files, err := walker.Walk(walker.Config{
		RootDir: cfg.SourceDir,
		Include: cfg.Include,
		Exclude: cfg.Exclude,
	})
	if err != nil {
		return fmt.Errorf("scanning source folder: %w", err)
	}

	if len(files) == 0 {
		fmt.Printf("No source documents found in %s.\n", cfg.SourceDir)
		return nil
	}

	// Documents already in the store are skipped by ingest. Without a
	// readable store everything is counted as new.
	stored := map[string]bool{}
	if store, err := openStore(ctx, cfg); err == nil {
		if ids, err := store.IDs(ctx); err == nil {
			for _, id := range ids {
				stored[id] = true
			}
		}
	}

	est := budget.NewEstimator(cfg.TokenEstimator, cfg.EmbeddingModel)
	var newTokens, allTokens, newFiles, empty int
	for _, f := range files {
		doc, err := loader.LoadFile(f.Path)
		if err != nil {
			fmt.Printf("  skipping %s: %v\n", f.RelPath, err)
			continue
		}
		if doc.Text == "" {
			empty++
			continue
		}
		tokens := est.Estimate(doc.Text)
		allTokens += tokens
		if !stored[f.RelPath] {
			newTokens += tokens
			newFiles++
		}
	}

	fmt.Println("Embedding Cost Estimate")
	fmt.Println("=======================")
	fmt.Printf("  Source folder:       %s\n", cfg.SourceDir)
	fmt.Printf("  Documents found:     %d\n", len(files))
	fmt.Printf("  Without text:        %d\n", empty)
	fmt.Printf("  Not yet embedded:    %d\n", newFiles)
	fmt.Println()
	fmt.Printf("  %-20s %10s  %s\n", "Operation", "Tokens", "Cost")
	fmt.Printf("  %-20s %10d  $%.4f\n", "ingest", newTokens, llm.EstimateCost(cfg.EmbeddingModel, newTokens, 0))
	fmt.Printf("  %-20s %10d  $%.4f\n", "rebuild", allTokens, llm.EstimateCost(cfg.EmbeddingModel, allTokens, 0))
	fmt.Println()
	fmt.Printf("  Embedding model: %s\n", cfg.EmbeddingModel)

	return nil
}
