package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ziadkadry99/docqa/internal/audit"
	"github.com/ziadkadry99/docqa/internal/chat"
	"github.com/ziadkadry99/docqa/internal/docqa"
	"github.com/ziadkadry99/docqa/internal/embeddings"
	"github.com/ziadkadry99/docqa/internal/llm"
	"github.com/ziadkadry99/docqa/internal/loader"
	"github.com/ziadkadry99/docqa/internal/vectordb"
)

type sessionResponse struct {
	ID       string `json:"id"`
	State    string `json:"state"`
	Document string `json:"document,omitempty"`
}

type messageView struct {
	Role    llm.Role      `json:"role"`
	Content string        `json:"content"`
	HTML    template.HTML `json:"html"`
}

type messagesResponse struct {
	sessionResponse
	Messages []messageView `json:"messages"`
}

type messageRequest struct {
	Content string `json:"content" validate:"required,max=8000"`
}

type replyResponse struct {
	Kind         string        `json:"kind"`
	Text         string        `json:"text"`
	HTML         template.HTML `json:"html"`
	Sources      []string      `json:"sources"`
	State        string        `json:"state"`
	PromptTokens int           `json:"prompt_tokens,omitempty"`
}

type documentResponse struct {
	Name   string        `json:"name"`
	Format loader.Format `json:"format"`
	Chars  int           `json:"chars"`
}

type retrieveParams struct {
	Query string `validate:"required,max=2000"`
	K     int    `validate:"min=1,max=50"`
}

type resultView struct {
	Rank       int     `json:"rank"`
	ID         string  `json:"id"`
	Similarity float32 `json:"similarity"`
}

type storeResponse struct {
	Collection string   `json:"collection"`
	SourceDir  string   `json:"source_dir"`
	Count      int      `json:"count"`
	IDs        []string `json:"ids"`
}

type rebuildResponse struct {
	Added   []string `json:"added"`
	Skipped []string `json:"skipped"`
	Failed  []string `json:"failed"`
	Count   int      `json:"count"`
	Warning string   `json:"warning,omitempty"`
}

type summarizeForm struct {
	Question string `validate:"max=2000"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (wb *Web) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := wb.deps.Sessions.Create()
	wb.record(r.Context(), audit.Entry{
		ActorType: audit.ActorUser,
		ActorID:   sess.ID,
		Action:    audit.ActionSessionCreated,
		Scope:     audit.ScopeSession,
		ScopeID:   sess.ID,
	})
	writeJSON(w, http.StatusCreated, sessionView(sess))
}

func (wb *Web) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := wb.deps.Sessions.Get(id); !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	wb.deps.Sessions.Delete(id)
	wb.record(r.Context(), audit.Entry{
		ActorType: audit.ActorUser,
		ActorID:   id,
		Action:    audit.ActionSessionDeleted,
		Scope:     audit.ScopeSession,
		ScopeID:   id,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (wb *Web) handleMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := wb.session(w, r)
	if !ok {
		return
	}
	resp := messagesResponse{sessionResponse: sessionView(sess), Messages: []messageView{}}
	for _, m := range sess.Messages() {
		if m.Role == llm.RoleSystem {
			continue
		}
		resp.Messages = append(resp.Messages, messageView{Role: m.Role, Content: m.Content, HTML: wb.renderer.HTML(m.Content)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (wb *Web) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := wb.session(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := wb.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := wb.deps.Engine.Handle(r.Context(), sess, req.Content, nil)
	if err != nil {
		wb.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wb.replyView(sess, reply))
}

func (wb *Web) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := wb.session(w, r)
	if !ok {
		return
	}
	doc, err := wb.readUpload(w, r)
	if err != nil {
		wb.fail(w, r, err)
		return
	}
	sess.SetDocument(doc)
	wb.record(r.Context(), audit.Entry{
		ActorType:   audit.ActorUser,
		ActorID:     sess.ID,
		Action:      audit.ActionDocumentAttached,
		Scope:       audit.ScopeSession,
		ScopeID:     sess.ID,
		Summary:     fmt.Sprintf("%s (%s, %d chars)", doc.Name, doc.Format, len(doc.Text)),
		AffectedIDs: []string{doc.Name},
	})
	writeJSON(w, http.StatusOK, documentResponse{Name: doc.Name, Format: doc.Format, Chars: len(doc.Text)})
}

func (wb *Web) handleDetachDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := wb.session(w, r)
	if !ok {
		return
	}
	sess.SetDocument(nil)
	w.WriteHeader(http.StatusNoContent)
}

func (wb *Web) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	if wb.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "vector store not configured")
		return
	}
	params := retrieveParams{Query: r.URL.Query().Get("q"), K: 3}
	if v := r.URL.Query().Get("k"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "k must be an integer")
			return
		}
		params.K = k
	}
	if err := wb.validate.Struct(params); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	retrieval, err := wb.deps.Store.Query(r.Context(), params.Query, params.K)
	if err != nil {
		wb.fail(w, r, err)
		return
	}
	results := make([]resultView, 0, len(retrieval.Results))
	for i, res := range retrieval.Results {
		results = append(results, resultView{Rank: i + 1, ID: res.Record.ID, Similarity: res.Similarity})
	}
	writeJSON(w, http.StatusOK, results)
}

func (wb *Web) handleStoreStats(w http.ResponseWriter, r *http.Request) {
	if wb.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "vector store not configured")
		return
	}
	ids, err := wb.deps.Store.IDs(r.Context())
	if err != nil {
		wb.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, storeResponse{
		Collection: wb.deps.Collection,
		SourceDir:  wb.deps.Store.SourceDir(),
		Count:      wb.deps.Store.Count(),
		IDs:        ids,
	})
}

func (wb *Web) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if wb.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "vector store not configured")
		return
	}
	start := time.Now()
	res, err := wb.deps.Store.Rebuild(r.Context())
	wb.record(r.Context(), audit.StoreRun(audit.ActionRebuild, audit.ActorUser, middleware.GetReqID(r.Context()), wb.deps.Collection, res, time.Since(start), err))

	var noData *vectordb.NoSourceDataError
	if errors.As(err, &noData) {
		writeJSON(w, http.StatusOK, rebuildResponse{
			Added:   []string{},
			Skipped: []string{},
			Failed:  []string{},
			Count:   wb.deps.Store.Count(),
			Warning: noData.Error(),
		})
		return
	}
	if err != nil {
		wb.fail(w, r, err)
		return
	}

	resp := rebuildResponse{Added: res.Added, Skipped: res.Skipped, Failed: []string{}, Count: wb.deps.Store.Count()}
	if resp.Added == nil {
		resp.Added = []string{}
	}
	if resp.Skipped == nil {
		resp.Skipped = []string{}
	}
	for _, f := range res.Failed {
		resp.Failed = append(resp.Failed, f.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSummarize streams a summary of an uploaded file as plain text.
func (wb *Web) handleSummarize(w http.ResponseWriter, r *http.Request) {
	doc, err := wb.readUpload(w, r)
	if err != nil {
		wb.fail(w, r, err)
		return
	}
	style, err := docqa.ParseStyle(r.FormValue("style"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	form := summarizeForm{Question: r.FormValue("question")}
	if err := wb.validate.Struct(form); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	advanced, _ := strconv.ParseBool(r.FormValue("advanced"))

	sw := newStreamWriter(w)
	_, err = wb.deps.Docs.Summarize(r.Context(), doc, docqa.SummaryRequest{
		Style:    style,
		Question: form.Question,
		Advanced: advanced,
	}, sw.write)
	if err != nil {
		sw.fail(func() { wb.fail(w, r, err) })
		return
	}
	wb.record(r.Context(), audit.Entry{
		ActorType:   audit.ActorUser,
		ActorID:     middleware.GetReqID(r.Context()),
		Action:      audit.ActionSummaryGenerated,
		Scope:       audit.ScopeSession,
		Summary:     fmt.Sprintf("%s: %s", doc.Name, style),
		AffectedIDs: []string{doc.Name},
	})
}

// handleAsk streams the answer to one question about an uploaded file.
func (wb *Web) handleAsk(w http.ResponseWriter, r *http.Request) {
	doc, err := wb.readUpload(w, r)
	if err != nil {
		wb.fail(w, r, err)
		return
	}
	sw := newStreamWriter(w)
	if _, err := wb.deps.Docs.Answer(r.Context(), doc, r.FormValue("question"), sw.write); err != nil {
		sw.fail(func() { wb.fail(w, r, err) })
	}
}

// readUpload reads the multipart "file" field into a Document.
func (wb *Web) readUpload(w http.ResponseWriter, r *http.Request) (*loader.Document, error) {
	r.Body = http.MaxBytesReader(w, r.Body, wb.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(wb.deps.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &requestError{status: http.StatusRequestEntityTooLarge, msg: "upload exceeds the size limit"}
		}
		return nil, &requestError{status: http.StatusBadRequest, msg: "invalid upload: " + err.Error()}
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, &requestError{status: http.StatusBadRequest, msg: "file is required"}
	}
	defer file.Close()

	if _, err := loader.FormatFor(header.Filename); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	return loader.Load(header.Filename, data)
}

func (wb *Web) session(w http.ResponseWriter, r *http.Request) (*chat.Session, bool) {
	sess, ok := wb.deps.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
	}
	return sess, ok
}

func (wb *Web) replyView(sess *chat.Session, reply *chat.Reply) replyResponse {
	sources := reply.Sources
	if sources == nil {
		sources = []string{}
	}
	return replyResponse{
		Kind:         reply.Kind.String(),
		Text:         reply.Text,
		HTML:         wb.renderer.HTML(reply.Text),
		Sources:      sources,
		State:        sess.State().String(),
		PromptTokens: reply.PromptTokens,
	}
}

func sessionView(sess *chat.Session) sessionResponse {
	resp := sessionResponse{ID: sess.ID, State: sess.State().String()}
	if doc := sess.Document(); doc != nil {
		resp.Document = doc.Name
	}
	return resp
}

// requestError carries a client error status.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		reqErr    *requestError
		formatErr *loader.UnsupportedFormatError
		embedErr  *embeddings.ServiceError
		llmErr    *llm.ServiceError
	)
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status
	case errors.As(err, &formatErr):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, context.DeadlineExceeded):
		// Checked before service errors, which wrap transport timeouts.
		return http.StatusGatewayTimeout
	case errors.As(err, &embedErr), errors.As(err, &llmErr):
		return http.StatusBadGateway
	case errors.Is(err, chat.ErrEmptyInput), errors.Is(err, docqa.ErrNoQuestion):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (wb *Web) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger(r.Context()).Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, status, err.Error())
}

func logger(ctx context.Context) *slog.Logger {
	if id := middleware.GetReqID(ctx); id != "" {
		return slog.With("request_id", id)
	}
	return slog.Default()
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// streamWriter writes text fragments as they arrive. Once the first
// fragment is sent the status is committed, so later errors can only be
// appended to the body.
type streamWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newStreamWriter(w http.ResponseWriter) *streamWriter {
	f, _ := w.(http.Flusher)
	return &streamWriter{w: w, flusher: f}
}

func (s *streamWriter) write(frag string) {
	if !s.started {
		s.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		s.w.Header().Set("X-Content-Type-Options", "nosniff")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	io.WriteString(s.w, frag)
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

func (s *streamWriter) fail(writeErr func()) {
	if !s.started {
		writeErr()
		return
	}
	io.WriteString(s.w, "\n\n[error: response interrupted]")
}
