package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docqa/internal/chat"
	"github.com/ziadkadry99/docqa/internal/config"
	"github.com/ziadkadry99/docqa/internal/llm"
	"github.com/ziadkadry99/docqa/internal/loader"
	"github.com/ziadkadry99/docqa/internal/vectordb"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat about the course documents in the terminal",
	Long: `Starts an interactive conversation. Every question retrieves the most
relevant source documents and sends them to the model together with the
recent conversation. After each answer docqa asks whether you want more
info; answer yes or no.

Type /quit to leave, /reset to start over, /doc <file> to attach a
document, /doc to detach it, and /sources to list the stored documents.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().String("doc", "", "attach a document to the conversation")
	chatCmd.Flags().Bool("no-rag", false, "answer without retrieval")
	chatCmd.Flags().Bool("no-ingest", false, "do not embed new source documents on start")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	docPath, _ := cmd.Flags().GetString("doc")
	noRAG, _ := cmd.Flags().GetBool("no-rag")
	noIngest, _ := cmd.Flags().GetBool("no-ingest")

	ctx := context.Background()

	provider, err := llm.NewProvider(cfg, cfg.Model)
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}

	var store *vectordb.Store
	var retriever vectordb.Retriever
	if !noRAG {
		store, err = openStore(ctx, cfg)
		if err != nil {
			return err
		}
		if !noIngest {
			if err := ingestOnStart(ctx, store); err != nil {
				return err
			}
		}
		retriever = store
	}

	engine := newEngine(cfg, provider, retriever)
	sess := chat.NewSession("cli", cfg.SystemPrompt)
	if docPath != "" {
		if err := attachDocument(sess, docPath); err != nil {
			return err
		}
	}

	repl := &chatREPL{cfg: cfg, engine: engine, store: store, sess: sess, out: os.Stdout}
	return repl.run(ctx, os.Stdin)
}

// ingestOnStart embeds documents missing from the store, like the first
// run of the web UI. An empty source folder only warns.
func ingestOnStart(ctx context.Context, store *vectordb.Store) error {
	withProgress(store, "Embedding new documents")
	res, err := store.IngestFolder(ctx)
	var noData *vectordb.NoSourceDataError
	switch {
	case errors.As(err, &noData):
		fmt.Fprintf(os.Stderr, "Warning: %v. Answers will not use retrieved context.\n", noData)
		return nil
	case err != nil:
		return fmt.Errorf("ingesting source documents: %w", err)
	}
	if len(res.Added) > 0 {
		fmt.Fprintf(os.Stderr, "Embedded %d new document(s).\n", len(res.Added))
	}
	return nil
}

func attachDocument(sess *chat.Session, path string) error {
	doc, err := loader.LoadFile(path)
	if err != nil {
		return fmt.Errorf("attaching %s: %w", path, err)
	}
	if doc.Text == "" {
		fmt.Fprintf(os.Stderr, "Warning: no text could be extracted from %s.\n", path)
	}
	sess.SetDocument(doc)
	fmt.Printf("Attached %s (%d chars).\n", doc.Name, len(doc.Text))
	return nil
}

type chatREPL struct {
	cfg    *config.Config
	engine *chat.Engine
	store  *vectordb.Store
	sess   *chat.Session
	out    io.Writer
}

func (r *chatREPL) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(r.out, "Ask a course question (/quit to exit).")
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Fprint(r.out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := r.command(ctx, line); quit {
				return nil
			}
			continue
		}
		r.turn(ctx, line)
	}
}

// turn runs one exchange. Ctrl-C cancels the reply without leaving chat.
func (r *chatREPL) turn(ctx context.Context, line string) {
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	streamed := false
	reply, err := r.engine.Handle(turnCtx, r.sess, line, func(frag string) {
		streamed = true
		fmt.Fprint(r.out, frag)
	})
	if err != nil {
		if streamed {
			fmt.Fprintln(r.out)
		}
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(r.out, "(cancelled)")
			return
		}
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	if !streamed {
		fmt.Fprint(r.out, reply.Text)
	}
	fmt.Fprintln(r.out)
}

func (r *chatREPL) command(ctx context.Context, line string) (quit bool) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true
	case "/reset":
		doc := r.sess.Document()
		r.sess = chat.NewSession("cli", r.cfg.SystemPrompt)
		r.sess.SetDocument(doc)
		fmt.Fprintln(r.out, "Conversation cleared.")
	case "/doc":
		if arg == "" {
			r.sess.SetDocument(nil)
			fmt.Fprintln(r.out, "Document detached.")
			return false
		}
		if err := attachDocument(r.sess, arg); err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
		}
	case "/sources":
		if r.store == nil {
			fmt.Fprintln(r.out, "Retrieval is disabled.")
			return false
		}
		ids, err := r.store.IDs(ctx)
		if err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
			return false
		}
		fmt.Fprintf(r.out, "%d document(s) in %s:\n", len(ids), r.cfg.Collection)
		for _, id := range ids {
			fmt.Fprintf(r.out, "  %s\n", id)
		}
	default:
		fmt.Fprintf(r.out, "Unknown command %s. Try /quit, /reset, /doc or /sources.\n", name)
	}
	return false
}
