package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docqa/internal/audit"
	"github.com/ziadkadry99/docqa/internal/vectordb"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Embed new source documents into the vector store",
	Long: `Scans the source folder and embeds every supported document that is not
yet in the vector store. Documents already stored are skipped, so running
ingest again only costs embeddings for new files.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStoreCommand(audit.ActionIngest, "Embedding documents", (*vectordb.Store).IngestFolder)
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-embed every source document and replace the vector store",
	Long: `Builds a fresh vector store from the source folder and swaps it in once
complete. The existing store stays in place if the rebuild fails. This
re-embeds every document and so costs embeddings for the whole folder.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			prompt := promptui.Prompt{
				Label:     "Rebuild the vector store (costs embeddings)",
				IsConfirm: true,
			}
			if _, err := prompt.Run(); err != nil {
				fmt.Println("Rebuild cancelled.")
				return nil
			}
		}
		return runStoreCommand(audit.ActionRebuild, "Rebuilding", (*vectordb.Store).Rebuild)
	},
}

func init() {
	rebuildCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(rebuildCmd)
}

// runStoreCommand opens the store, runs op with a progress bar, prints the
// outcome, and records it in the event log. A folder without source
// documents is reported as a warning, not an error.
func runStoreCommand(action audit.Action, description string, op func(*vectordb.Store, context.Context) (*vectordb.IngestResult, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	withProgress(store, description)

	start := time.Now()
	res, err := op(store, ctx)
	recordRun(ctx, cfg, action, res, time.Since(start), err)

	var noData *vectordb.NoSourceDataError
	if errors.As(err, &noData) {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", noData)
		fmt.Fprintf(os.Stderr, "Add PDF or text files to %s and run `docqa %s` again.\n", cfg.SourceDir, action)
		return nil
	}
	if err != nil {
		if res != nil && len(res.Added) > 0 && action == audit.ActionIngest {
			fmt.Fprintf(os.Stderr, "%d document(s) were stored before the failure.\n", len(res.Added))
		}
		return fmt.Errorf("%s failed: %w", action, err)
	}

	printIngestResult(res, store.Count())
	return nil
}
