// Package web serves the browser chat UI and its JSON and WebSocket API.
package web

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/ziadkadry99/docqa/internal/audit"
	"github.com/ziadkadry99/docqa/internal/chat"
	"github.com/ziadkadry99/docqa/internal/docqa"
	"github.com/ziadkadry99/docqa/internal/render"
	"github.com/ziadkadry99/docqa/internal/vectordb"
)

// Store is the part of the vector store the UI needs.
type Store interface {
	vectordb.Retriever
	Count() int
	IDs(ctx context.Context) ([]string, error)
	Rebuild(ctx context.Context) (*vectordb.IngestResult, error)
	SourceDir() string
}

// Deps are the services behind the web UI. Store and Audit may be nil.
type Deps struct {
	Sessions   *chat.Manager
	Engine     *chat.Engine
	Docs       *docqa.Service
	Store      Store
	Audit      *audit.Store
	Collection string
	// MaxUploadBytes caps document uploads.
	MaxUploadBytes int64
	// StreamReplies sends WebSocket fragment frames as the model writes.
	StreamReplies bool
	// TurnTimeout bounds one WebSocket chat turn.
	TurnTimeout time.Duration
}

// Web provides the chat UI, the session API, and the WebSocket chat.
type Web struct {
	deps     Deps
	renderer *render.Renderer
	validate *validator.Validate
}

// New creates a Web.
func New(deps Deps) *Web {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 20 << 20
	}
	if deps.TurnTimeout <= 0 {
		deps.TurnTimeout = 2 * time.Minute
	}
	return &Web{
		deps:     deps,
		renderer: render.New(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts all web routes onto the given router.
func (wb *Web) RegisterRoutes(r chi.Router) {
	r.Get("/", wb.ServeIndex)
	r.Get("/ws/chat", wb.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(2 * time.Minute))

		r.Post("/api/sessions", wb.handleCreateSession)
		r.Route("/api/sessions/{id}", func(r chi.Router) {
			r.Delete("/", wb.handleDeleteSession)
			r.Get("/messages", wb.handleMessages)
			r.Post("/messages", wb.handlePostMessage)
			r.Post("/document", wb.handleUploadDocument)
			r.Delete("/document", wb.handleDetachDocument)
		})

		r.Get("/api/retrieve", wb.handleRetrieve)
		r.Get("/api/store", wb.handleStoreStats)
	})

	// Long-running: rebuild embeds the whole folder; summaries stream.
	r.Post("/api/store/rebuild", wb.handleRebuild)
	r.Post("/api/summarize", wb.handleSummarize)
	r.Post("/api/ask", wb.handleAsk)

	if wb.deps.Audit != nil {
		audit.RegisterRoutes(r, wb.deps.Audit)
	}
}

func (wb *Web) record(ctx context.Context, e audit.Entry) {
	if wb.deps.Audit == nil {
		return
	}
	if err := wb.deps.Audit.Log(context.WithoutCancel(ctx), e); err != nil {
		logger(ctx).Warn("recording audit entry", "action", e.Action, "error", err)
	}
}
