package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ziadkadry99/docqa/internal/audit"
	"github.com/ziadkadry99/docqa/internal/budget"
	"github.com/ziadkadry99/docqa/internal/chat"
	"github.com/ziadkadry99/docqa/internal/config"
	"github.com/ziadkadry99/docqa/internal/db"
	"github.com/ziadkadry99/docqa/internal/docqa"
	"github.com/ziadkadry99/docqa/internal/embeddings"
	"github.com/ziadkadry99/docqa/internal/llm"
	"github.com/ziadkadry99/docqa/internal/progress"
	"github.com/ziadkadry99/docqa/internal/vectordb"
)

// loadConfig returns the validated config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg := appCfg
	if cfg == nil {
		var err error
		if cfg, err = config.Load(cfgFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w\nRun `docqa init` to create a config file", cfgFile, err)
	}
	return cfg, nil
}

// openStore creates the embedder and loads the persisted vector store.
func openStore(ctx context.Context, cfg *config.Config) (*vectordb.Store, error) {
	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	store, err := vectordb.Open(ctx, vectordb.Options{
		Dir:        cfg.StoreDir,
		Collection: cfg.Collection,
		SourceDir:  cfg.SourceDir,
		Include:    cfg.Include,
		Exclude:    cfg.Exclude,
	}, embedder)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	return store, nil
}

// withProgress shows a progress bar while store embeds documents.
func withProgress(store *vectordb.Store, description string) {
	store.SetProgressFunc(progress.Func(progress.NewReporter(description)))
}

func newEngine(cfg *config.Config, provider llm.Provider, retriever vectordb.Retriever) *chat.Engine {
	return chat.NewEngine(provider, retriever, chat.Options{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		TokenBudget: cfg.TokenBudget,
		TopK:        cfg.TopK,
		Stream:      cfg.Stream,
		Estimator:   budget.NewEstimator(cfg.TokenEstimator, cfg.Model),
	})
}

func newDocQA(cfg *config.Config, provider llm.Provider) *docqa.Service {
	return docqa.New(provider, docqa.Options{
		Model:         cfg.Model,
		SummaryModel:  cfg.SummaryModel,
		AdvancedModel: cfg.AdvancedModel,
		Temperature:   cfg.Temperature,
	})
}

// openAudit opens the event log database. Callers close the returned DB.
func openAudit(cfg *config.Config) (*audit.Store, *db.DB, error) {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return audit.NewStore(database), database, nil
}

// recordRun logs an ingest or rebuild run from the CLI. Failures to record
// are only logged.
func recordRun(ctx context.Context, cfg *config.Config, action audit.Action, res *vectordb.IngestResult, dur time.Duration, runErr error) {
	store, database, err := openAudit(cfg)
	if err != nil {
		slog.Warn("could not record store run", "action", action, "error", err)
		return
	}
	defer database.Close()
	if err := store.Log(ctx, audit.StoreRun(action, audit.ActorSystem, "cli", cfg.Collection, res, dur, runErr)); err != nil {
		slog.Warn("could not record store run", "action", action, "error", err)
	}
}

func printIngestResult(res *vectordb.IngestResult, count int) {
	fmt.Printf("Embedded %d document(s), skipped %d already stored, %d failed.\n",
		len(res.Added), len(res.Skipped), len(res.Failed))
	for _, f := range res.Failed {
		fmt.Printf("  failed: %s\n", f.Error())
	}
	fmt.Printf("Vector store now holds %d document(s).\n", count)
}
