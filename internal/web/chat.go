package web

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/docqa/internal/audit"
	"github.com/ziadkadry99/docqa/internal/chat"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatRequest is the incoming WebSocket message format.
type chatRequest struct {
	Type      string `json:"type" validate:"required,oneof=message"`
	SessionID string `json:"session_id"` // empty starts a new session
	Content   string `json:"content" validate:"required,max=8000"`
}

// chatFrame is the outgoing WebSocket message format. A turn produces zero
// or more "fragment" frames followed by one "reply" or "error" frame.
type chatFrame struct {
	Type      string        `json:"type"` // "session", "fragment", "reply" or "error"
	SessionID string        `json:"session_id,omitempty"`
	Content   string        `json:"content,omitempty"`
	HTML      template.HTML `json:"html,omitempty"`
	Kind      string        `json:"kind,omitempty"`
	Sources   []string      `json:"sources,omitempty"`
	State     string        `json:"state,omitempty"`
	Status    int           `json:"status,omitempty"`
}

func (wb *Web) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	// The hijacked request context is never cancelled by net/http, so the
	// reader cancels ctx once the client goes away. That stops a running turn.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	msgs := make(chan []byte)
	go func() {
		defer cancel()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Warn("websocket read", "error", err)
				}
				return
			}
			select {
			case msgs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var msg []byte
		select {
		case <-ctx.Done():
			return
		case msg = <-msgs:
		}

		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			wb.sendError(conn, "", http.StatusBadRequest, "invalid message format")
			continue
		}
		if err := wb.validate.Struct(req); err != nil {
			wb.sendError(conn, req.SessionID, http.StatusBadRequest, err.Error())
			continue
		}

		turnCtx, cancelTurn := context.WithTimeout(ctx, wb.deps.TurnTimeout)
		wb.handleChatMessage(turnCtx, conn, req)
		cancelTurn()
	}
}

func (wb *Web) handleChatMessage(ctx context.Context, conn *websocket.Conn, req chatRequest) {
	var sess *chat.Session
	if req.SessionID == "" {
		sess = wb.deps.Sessions.Create()
		wb.record(ctx, audit.Entry{
			ActorType: audit.ActorUser,
			ActorID:   sess.ID,
			Action:    audit.ActionSessionCreated,
			Scope:     audit.ScopeSession,
			ScopeID:   sess.ID,
		})
		wb.send(conn, chatFrame{Type: "session", SessionID: sess.ID, State: sess.State().String()})
	} else {
		var ok bool
		sess, ok = wb.deps.Sessions.Get(req.SessionID)
		if !ok {
			wb.sendError(conn, req.SessionID, http.StatusNotFound, "session not found")
			return
		}
	}

	var sink func(string)
	if wb.deps.StreamReplies {
		sink = func(frag string) {
			wb.send(conn, chatFrame{Type: "fragment", SessionID: sess.ID, Content: frag})
		}
	}

	reply, err := wb.deps.Engine.Handle(ctx, sess, req.Content, sink)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("chat turn cancelled", "session", sess.ID)
			return
		}
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			logger(ctx).Error("chat turn failed", "session", sess.ID, "status", status, "error", err)
		}
		wb.sendError(conn, sess.ID, status, err.Error())
		return
	}

	view := wb.replyView(sess, reply)
	wb.send(conn, chatFrame{
		Type:      "reply",
		SessionID: sess.ID,
		Content:   view.Text,
		HTML:      view.HTML,
		Kind:      view.Kind,
		Sources:   view.Sources,
		State:     view.State,
	})
}

func (wb *Web) send(conn *websocket.Conn, frame chatFrame) {
	if err := conn.WriteJSON(frame); err != nil {
		slog.Warn("websocket write", "error", err)
	}
}

func (wb *Web) sendError(conn *websocket.Conn, sessionID string, status int, message string) {
	wb.send(conn, chatFrame{
		Type:      "error",
		SessionID: sessionID,
		Content:   message,
		Status:    status,
	})
}
