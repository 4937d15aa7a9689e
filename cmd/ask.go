package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docqa/internal/docqa"
	"github.com/ziadkadry99/docqa/internal/llm"
	"github.com/ziadkadry99/docqa/internal/loader"
)

var askCmd = &cobra.Command{
	Use:   "ask <file> [question]",
	Short: "Ask one question about a document, or summarize it",
	Long: `Sends a single document and question to the model and streams the answer.
No conversation history or retrieval is involved.

With --summary the document is summarized instead, in one of the styles
"100 words", "2 connecting paragraphs" or "5 bullet points"; a question,
if given, is answered after the summary.`,
	Example: `  docqa ask notes.pdf "What is text mining?"
  docqa ask notes.pdf --summary bullets
  docqa ask notes.pdf --summary paragraphs --advanced "Who is the audience?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().String("summary", "", "summarize in a style: words, paragraphs, bullets")
	askCmd.Flags().Bool("advanced", false, "use the advanced model for summaries")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	summary, _ := cmd.Flags().GetString("summary")
	advanced, _ := cmd.Flags().GetBool("advanced")
	question := strings.Join(args[1:], " ")

	doc, err := loader.LoadFile(args[0])
	if err != nil {
		return err
	}
	if doc.Text == "" {
		fmt.Fprintf(os.Stderr, "Warning: no text could be extracted from %s.\n", args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	provider, err := llm.NewProvider(cfg, cfg.Model)
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}
	svc := newDocQA(cfg, provider)
	sink := func(frag string) { fmt.Print(frag) }

	if summary != "" {
		style, err := docqa.ParseStyle(summary)
		if err != nil {
			return err
		}
		_, err = svc.Summarize(ctx, doc, docqa.SummaryRequest{Style: style, Question: question, Advanced: advanced}, sink)
		fmt.Println()
		return err
	}

	_, err = svc.Answer(ctx, doc, question, sink)
	fmt.Println()
	return err
}
