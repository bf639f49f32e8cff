package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/pj-companion/internal/chat"
	"github.com/ashureev/pj-companion/internal/search"
	"github.com/go-chi/chi/v5"
)

// Replier produces a reply for one message.
type Replier interface {
	Reply(ctx context.Context, sessionID, message string) (chat.Result, error)
}

// SessionEvicter removes a session on request.
type SessionEvicter interface {
	Evict(sessionID string) bool
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatResponse is the body of a successful POST /chat.
type ChatResponse struct {
	Reply     string          `json:"reply"`
	SessionID string          `json:"session_id"`
	Sources   []search.Result `json:"sources,omitempty"`
}

// ChatHandler handles chat and session endpoints.
type ChatHandler struct {
	replier  Replier
	sessions SessionEvicter
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(replier Replier, sessions SessionEvicter) *ChatHandler {
	return &ChatHandler{replier: replier, sessions: sessions}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.Chat)
	r.Delete("/sessions/{sessionID}", h.DeleteSession)
}

// Chat answers one message for a session.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.replier.Reply(r.Context(), req.SessionID, req.Message)
	if err != nil {
		WriteChatError(w, req.SessionID, err)
		return
	}

	JSON(w, http.StatusOK, ChatResponse{
		Reply:     res.Reply,
		SessionID: res.SessionID,
		Sources:   res.Sources,
	})
}

// DeleteSession evicts a session immediately.
func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	evicted := h.sessions.Evict(id)
	slog.Info("Session delete requested", "session_id", id, "evicted", evicted)
	JSON(w, http.StatusOK, map[string]interface{}{
		"session_id": id,
		"evicted":    evicted,
	})
}

// ChatErrorStatus maps a Reply error to an HTTP status and client detail.
func ChatErrorStatus(err error) (int, string) {
	var cerr *chat.CompletionError
	switch {
	case errors.Is(err, chat.ErrMissingSessionID):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, chat.ErrNotConfigured):
		return http.StatusInternalServerError, err.Error()
	case errors.As(err, &cerr):
		return http.StatusInternalServerError, cerr.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// WriteChatError writes the error response for a failed Reply.
func WriteChatError(w http.ResponseWriter, sessionID string, err error) {
	status, detail := ChatErrorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Chat request failed", "session_id", sessionID, "error", err)
	}
	Error(w, status, detail)
}
