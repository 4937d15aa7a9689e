package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docqa/internal/audit"
	"github.com/ziadkadry99/docqa/internal/chat"
	"github.com/ziadkadry99/docqa/internal/db"
	"github.com/ziadkadry99/docqa/internal/llm"
	"github.com/ziadkadry99/docqa/internal/server"
	"github.com/ziadkadry99/docqa/internal/vectordb"
	"github.com/ziadkadry99/docqa/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web chat UI and HTTP API",
	Long: `Starts the HTTP server with the browser chat UI, the JSON API, and the
WebSocket chat endpoint. New source documents are embedded on start unless
--no-ingest is given.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "port to listen on (overrides server.port)")
	serveCmd.Flags().Bool("no-ingest", false, "do not embed new source documents on start")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	noIngest, _ := cmd.Flags().GetBool("no-ingest")

	ttl, err := cfg.SessionTTL()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()
	auditStore := audit.NewStore(database)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if !noIngest {
		start := time.Now()
		res, err := store.IngestFolder(ctx)
		var noData *vectordb.NoSourceDataError
		switch {
		case errors.As(err, &noData):
			slog.Warn("vector store is empty", "error", noData)
		case err != nil:
			return fmt.Errorf("ingesting source documents: %w", err)
		default:
			slog.Info("source documents ingested", "added", len(res.Added), "skipped", len(res.Skipped), "failed", len(res.Failed))
			if len(res.Added) > 0 || len(res.Failed) > 0 {
				entry := audit.StoreRun(audit.ActionIngest, audit.ActorSystem, "serve", cfg.Collection, res, time.Since(start), nil)
				if err := auditStore.Log(ctx, entry); err != nil {
					slog.Warn("could not record ingest", "error", err)
				}
			}
		}
	}

	chatProvider, err := llm.NewProvider(cfg, cfg.Model)
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}

	srv := server.New(server.Config{
		Port:     cfg.Server.Port,
		AllowAll: cfg.Server.AllowAllOrigins,
	}, database)

	web.New(web.Deps{
		Sessions:       chat.NewManager(cfg.SystemPrompt, ttl),
		Engine:         newEngine(cfg, chatProvider, store),
		Docs:           newDocQA(cfg, chatProvider),
		Store:          store,
		Audit:          auditStore,
		Collection:     cfg.Collection,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		StreamReplies:  cfg.Stream,
	}).RegisterRoutes(srv.Router())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
