package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/docqa/internal/audit"
	"github.com/ziadkadry99/docqa/internal/chat"
	"github.com/ziadkadry99/docqa/internal/db"
	"github.com/ziadkadry99/docqa/internal/docqa"
	"github.com/ziadkadry99/docqa/internal/embeddings"
	"github.com/ziadkadry99/docqa/internal/llm"
	"github.com/ziadkadry99/docqa/internal/vectordb"
)

type fakeProvider struct {
	fragments []string
	err       error
	requests  []llm.CompletionRequest
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{Content: strings.Join(p.fragments, ""), Model: req.Model}, nil
}

func (p *fakeProvider) Stream(_ context.Context, req llm.CompletionRequest) (llm.Stream, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return llm.NewStaticStream(p.fragments...), nil
}

type fakeStore struct {
	ids        []string
	rebuildRes *vectordb.IngestResult
	rebuildErr error
	queryErr   error
}

func (s *fakeStore) Query(_ context.Context, text string, k int) (*vectordb.Retrieval, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	r := &vectordb.Retrieval{}
	for i, id := range s.ids {
		if i == k {
			break
		}
		r.IDs = append(r.IDs, id)
		r.Results = append(r.Results, vectordb.Result{
			Record:     vectordb.Record{ID: id, Text: "text of " + id},
			Similarity: 1 - float32(i)/10,
		})
	}
	return r, nil
}

func (s *fakeStore) Count() int                            { return len(s.ids) }
func (s *fakeStore) IDs(context.Context) ([]string, error) { return s.ids, nil }
func (s *fakeStore) SourceDir() string                     { return "data" }
func (s *fakeStore) Rebuild(context.Context) (*vectordb.IngestResult, error) {
	return s.rebuildRes, s.rebuildErr
}

type testEnv struct {
	web      *Web
	router   chi.Router
	provider *fakeProvider
	store    *fakeStore
	audit    *audit.Store
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	provider := &fakeProvider{fragments: []string{"Joins ", "combine tables."}}
	store := &fakeStore{ids: []string{"databases.pdf", "networking.pdf"}}
	auditStore := audit.NewStore(database)

	engine := chat.NewEngine(provider, store, chat.Options{Model: "m", TokenBudget: 800, TopK: 3, Stream: true})
	wb := New(Deps{
		Sessions:      chat.NewManager("You are helpful.", 0),
		Engine:        engine,
		Docs:          docqa.New(provider, docqa.Options{Model: "m"}),
		Store:         store,
		Audit:         auditStore,
		Collection:    "documents",
		StreamReplies: true,
	})

	r := chi.NewRouter()
	wb.RegisterRoutes(r)
	return &testEnv{web: wb, router: r, provider: provider, store: store, audit: auditStore}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	w := e.do(t, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d", w.Code)
	}
	var resp sessionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding session: %v", err)
	}
	return resp.ID
}

func multipartRequest(t *testing.T, target, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func postMessage(t *testing.T, e *testEnv, id, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(messageRequest{Content: content})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/messages", bytes.NewReader(body))
	return e.do(t, req)
}

func TestServeIndex(t *testing.T) {
	e := setupTest(t)

	w := e.do(t, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("expected text/html content type, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), "/ws/chat") {
		t.Error("expected page to open the chat socket")
	}
}

func TestSessionLifecycle(t *testing.T) {
	e := setupTest(t)
	id := e.createSession(t)

	w := e.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/messages", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var msgs messagesResponse
	if err := json.NewDecoder(w.Body).Decode(&msgs); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if msgs.State != "idle" || len(msgs.Messages) != 0 {
		t.Errorf("new session should be idle and empty, got %+v", msgs)
	}

	w = e.do(t, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id, nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	w = e.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/messages", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
}

func TestPostMessageConfirmationLoop(t *testing.T) {
	e := setupTest(t)
	id := e.createSession(t)

	w := postMessage(t, e, id, "What is a join?")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var reply replyResponse
	if err := json.NewDecoder(w.Body).Decode(&reply); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if reply.Kind != "answer" || reply.State != "awaiting_confirmation" {
		t.Errorf("unexpected reply %+v", reply)
	}
	if !strings.HasSuffix(reply.Text, "(Used RAG sources: databases.pdf, networking.pdf)\n\nDo you want more info?") {
		t.Errorf("unexpected reply text %q", reply.Text)
	}
	if !strings.Contains(string(reply.HTML), "<p>") {
		t.Errorf("expected rendered HTML, got %q", reply.HTML)
	}

	w = postMessage(t, e, id, "maybe")
	json.NewDecoder(w.Body).Decode(&reply)
	if reply.Kind != "reprompt" || reply.Text != chat.RepromptText {
		t.Errorf("expected reprompt, got %+v", reply)
	}

	w = postMessage(t, e, id, "no")
	json.NewDecoder(w.Body).Decode(&reply)
	if reply.Kind != "declined" || reply.State != "idle" {
		t.Errorf("expected decline, got %+v", reply)
	}

	w = e.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/messages", nil))
	var msgs messagesResponse
	json.NewDecoder(w.Body).Decode(&msgs)
	if len(msgs.Messages) != 3 {
		t.Errorf("expected user, assistant, decline messages, got %d", len(msgs.Messages))
	}
}

func TestPostMessageValidation(t *testing.T) {
	e := setupTest(t)
	id := e.createSession(t)

	if w := postMessage(t, e, id, ""); w.Code != http.StatusBadRequest {
		t.Errorf("empty content: expected 400, got %d", w.Code)
	}
	if w := postMessage(t, e, "missing", "hi"); w.Code != http.StatusNotFound {
		t.Errorf("unknown session: expected 404, got %d", w.Code)
	}
}

func TestPostMessageServiceError(t *testing.T) {
	e := setupTest(t)
	e.provider.err = &llm.ServiceError{Provider: "fake", Err: errors.New("quota exceeded")}
	id := e.createSession(t)

	w := postMessage(t, e, id, "What is a join?")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}

	w = e.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/messages", nil))
	var msgs messagesResponse
	json.NewDecoder(w.Body).Decode(&msgs)
	if len(msgs.Messages) != 0 || msgs.State != "idle" {
		t.Errorf("failed turn must leave the session unchanged, got %+v", msgs)
	}
}

func TestUploadDocument(t *testing.T) {
	e := setupTest(t)
	id := e.createSession(t)

	w := e.do(t, multipartRequest(t, "/api/sessions/"+id+"/document", "notes.txt", "Cells divide.", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var doc documentResponse
	json.NewDecoder(w.Body).Decode(&doc)
	if doc.Name != "notes.txt" || doc.Chars != len("Cells divide.") {
		t.Errorf("unexpected document response %+v", doc)
	}

	postMessage(t, e, id, "What happens?")
	last := e.provider.requests[len(e.provider.requests)-1]
	if !strings.Contains(last.Messages[1].Content, "Cells divide.") {
		t.Error("attached document missing from the prompt")
	}
}

func TestUploadUnsupportedFormat(t *testing.T) {
	e := setupTest(t)
	id := e.createSession(t)

	w := e.do(t, multipartRequest(t, "/api/sessions/"+id+"/document", "slides.pptx", "x", nil))
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", w.Code)
	}
	w = e.do(t, multipartRequest(t, "/api/sessions/"+id+"/document", "", "", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing file: expected 400, got %d", w.Code)
	}
}

func TestRetrieve(t *testing.T) {
	e := setupTest(t)

	w := e.do(t, httptest.NewRequest(http.MethodGet, "/api/retrieve?q=sql&k=1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var results []resultView
	json.NewDecoder(w.Body).Decode(&results)
	if len(results) != 1 || results[0].ID != "databases.pdf" || results[0].Rank != 1 {
		t.Errorf("unexpected results %+v", results)
	}

	for _, target := range []string{"/api/retrieve", "/api/retrieve?q=x&k=0", "/api/retrieve?q=x&k=abc"} {
		if w := e.do(t, httptest.NewRequest(http.MethodGet, target, nil)); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, w.Code)
		}
	}
}

func TestRetrieveEmbeddingError(t *testing.T) {
	e := setupTest(t)
	e.store.queryErr = &embeddings.ServiceError{Provider: "openai", Err: errors.New("down")}

	w := e.do(t, httptest.NewRequest(http.MethodGet, "/api/retrieve?q=sql", nil))
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

func TestStoreStats(t *testing.T) {
	e := setupTest(t)

	w := e.do(t, httptest.NewRequest(http.MethodGet, "/api/store", nil))
	var stats storeResponse
	json.NewDecoder(w.Body).Decode(&stats)
	if stats.Count != 2 || stats.Collection != "documents" || len(stats.IDs) != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestRebuild(t *testing.T) {
	e := setupTest(t)
	e.store.rebuildRes = &vectordb.IngestResult{
		Added:  []string{"databases.pdf"},
		Failed: []vectordb.FileError{{ID: "scan.pdf", Err: errors.New("no extractable text")}},
	}

	w := e.do(t, httptest.NewRequest(http.MethodPost, "/api/store/rebuild", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var res rebuildResponse
	json.NewDecoder(w.Body).Decode(&res)
	if len(res.Added) != 1 || len(res.Failed) != 1 || res.Warning != "" {
		t.Errorf("unexpected rebuild response %+v", res)
	}

	entries, err := e.audit.Query(context.Background(), audit.QueryFilter{Action: audit.ActionRebuild})
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one rebuild audit entry, got %d (%v)", len(entries), err)
	}
}

func TestRebuildNoSourceData(t *testing.T) {
	e := setupTest(t)
	e.store.rebuildErr = &vectordb.NoSourceDataError{Dir: "data"}

	w := e.do(t, httptest.NewRequest(http.MethodPost, "/api/store/rebuild", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var res rebuildResponse
	json.NewDecoder(w.Body).Decode(&res)
	if res.Warning == "" || res.Count != 2 {
		t.Errorf("expected warning and unchanged count, got %+v", res)
	}
}

func TestRebuildServiceError(t *testing.T) {
	e := setupTest(t)
	e.store.rebuildErr = &embeddings.ServiceError{Provider: "openai", Err: errors.New("quota")}

	w := e.do(t, httptest.NewRequest(http.MethodPost, "/api/store/rebuild", nil))
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

func TestSummarizeStreams(t *testing.T) {
	e := setupTest(t)

	req := multipartRequest(t, "/api/summarize", "notes.txt", "Cells divide.", map[string]string{
		"style":    "100 words",
		"question": "Why?",
	})
	w := e.do(t, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "Joins combine tables." {
		t.Errorf("unexpected body %q", w.Body.String())
	}
	prompt := e.provider.requests[0].Messages[0].Content
	if !strings.Contains(prompt, "about 100 words") || !strings.Contains(prompt, "Then answer this question: Why?") {
		t.Errorf("unexpected prompt %q", prompt)
	}
}

func TestSummarizeBadStyle(t *testing.T) {
	e := setupTest(t)
	w := e.do(t, multipartRequest(t, "/api/summarize", "notes.txt", "x", map[string]string{"style": "haiku"}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAskRequiresQuestion(t *testing.T) {
	e := setupTest(t)
	w := e.do(t, multipartRequest(t, "/api/ask", "notes.txt", "x", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{chat.ErrEmptyInput, http.StatusBadRequest},
		{&llm.ServiceError{Provider: "x", Err: errors.New("e")}, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{&llm.ServiceError{Provider: "x", Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{&embeddings.ServiceError{Provider: "x", Err: fmt.Errorf("post: %w", context.DeadlineExceeded)}, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func dialChat(t *testing.T, e *testEnv) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(e.router)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketTurn(t *testing.T) {
	e := setupTest(t)
	conn := dialChat(t, e)

	if err := conn.WriteJSON(chatRequest{Type: "message", Content: "What is a join?"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var frame chatFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame.Type != "session" || frame.SessionID == "" {
		t.Fatalf("expected session frame first, got %+v", frame)
	}
	sessionID := frame.SessionID

	var streamed strings.Builder
	for {
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read: %v", err)
		}
		if frame.Type != "fragment" {
			break
		}
		streamed.WriteString(frame.Content)
	}

	if frame.Type != "reply" {
		t.Fatalf("expected reply frame, got %+v", frame)
	}
	if streamed.String() != frame.Content {
		t.Errorf("fragments %q do not add up to reply %q", streamed.String(), frame.Content)
	}
	if frame.State != "awaiting_confirmation" || len(frame.Sources) != 2 || frame.HTML == "" {
		t.Errorf("unexpected reply frame %+v", frame)
	}

	// The follow-up in the same session gets a reprompt without fragments.
	conn.WriteJSON(chatRequest{Type: "message", SessionID: sessionID, Content: "perhaps"})
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame.Type != "reply" || frame.Kind != "reprompt" {
		t.Errorf("expected reprompt reply, got %+v", frame)
	}
}

func TestWebSocketErrors(t *testing.T) {
	e := setupTest(t)
	conn := dialChat(t, e)

	tests := []struct {
		req    chatRequest
		status int
	}{
		{chatRequest{Type: "message", Content: ""}, http.StatusBadRequest},
		{chatRequest{Type: "unknown", Content: "hello"}, http.StatusBadRequest},
		{chatRequest{Type: "message", SessionID: "missing", Content: "hello"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		if err := conn.WriteJSON(tt.req); err != nil {
			t.Fatalf("write: %v", err)
		}
		var frame chatFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read: %v", err)
		}
		if frame.Type != "error" || frame.Status != tt.status {
			t.Errorf("%+v: expected error %d, got %+v", tt.req, tt.status, frame)
		}
	}
}

func TestAuditRoutesMounted(t *testing.T) {
	e := setupTest(t)
	e.createSession(t)

	w := e.do(t, httptest.NewRequest(http.MethodGet, "/api/audit?action=session_created", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var entries []audit.Entry
	json.NewDecoder(w.Body).Decode(&entries)
	if len(entries) != 1 {
		t.Errorf("expected 1 session_created entry, got %d", len(entries))
	}
}

// blockingProvider holds every request until its context ends.
type blockingProvider struct {
	started chan struct{}
	ended   chan error
}

func newBlockingProvider() *blockingProvider {
	return &blockingProvider{started: make(chan struct{}, 1), ended: make(chan error, 1)}
}

func (p *blockingProvider) Name() string { return "blocking" }

func (p *blockingProvider) Complete(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.started <- struct{}{}
	<-ctx.Done()
	p.ended <- ctx.Err()
	return nil, ctx.Err()
}

func (p *blockingProvider) Stream(ctx context.Context, req llm.CompletionRequest) (llm.Stream, error) {
	_, err := p.Complete(ctx, req)
	return nil, err
}

func setupBlockingTest(t *testing.T, turnTimeout time.Duration) (*testEnv, *blockingProvider, *chat.Manager) {
	t.Helper()
	provider := newBlockingProvider()
	sessions := chat.NewManager("You are helpful.", 0)
	wb := New(Deps{
		Sessions:    sessions,
		Engine:      chat.NewEngine(provider, nil, chat.Options{Model: "m", TokenBudget: 800}),
		Docs:        docqa.New(provider, docqa.Options{Model: "m"}),
		TurnTimeout: turnTimeout,
	})
	r := chi.NewRouter()
	wb.RegisterRoutes(r)
	return &testEnv{web: wb, router: r}, provider, sessions
}

func TestWebSocketDisconnectCancelsTurn(t *testing.T) {
	e, provider, sessions := setupBlockingTest(t, time.Minute)
	conn := dialChat(t, e)

	if err := conn.WriteJSON(chatRequest{Type: "message", Content: "What is a join?"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var frame chatFrame
	if err := conn.ReadJSON(&frame); err != nil || frame.Type != "session" {
		t.Fatalf("expected session frame, got %+v (%v)", frame, err)
	}

	select {
	case <-provider.started:
	case <-time.After(5 * time.Second):
		t.Fatal("turn never reached the provider")
	}
	conn.Close()

	select {
	case err := <-provider.ended:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("turn ended with %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("turn still running after client disconnect")
	}

	sess, ok := sessions.Get(frame.SessionID)
	if !ok {
		t.Fatal("session missing")
	}
	// Messages waits for the cancelled turn to release the session.
	if n := len(sess.Messages()); n != 1 {
		t.Errorf("expected only the system message, got %d messages", n)
	}
}

func TestWebSocketTurnTimeout(t *testing.T) {
	e, _, _ := setupBlockingTest(t, 50*time.Millisecond)
	conn := dialChat(t, e)

	if err := conn.WriteJSON(chatRequest{Type: "message", Content: "What is a join?"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var frame chatFrame
	for frame.Type != "error" {
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read: %v", err)
		}
	}
	if frame.Status != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want %d", frame.Status, http.StatusGatewayTimeout)
	}
}
