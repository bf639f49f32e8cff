package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ashureev/pj-companion/internal/api"
	"github.com/ashureev/pj-companion/internal/search"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

const readLimit = 64 << 10

// Frame types.
const (
	TypeMessage = "message"
	TypePing    = "ping"
	TypePong    = "pong"
	TypeReply   = "reply"
	TypeError   = "error"
)

// InboundFrame is a client frame. An empty Type means "message".
type InboundFrame struct {
	Type      string `json:"type,omitempty"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// OutboundFrame is a server frame.
type OutboundFrame struct {
	Type      string          `json:"type"`
	Reply     string          `json:"reply,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Sources   []search.Result `json:"sources,omitempty"`
	Error     string          `json:"error,omitempty"`
	Status    int             `json:"status,omitempty"`
}

// Handler upgrades requests to WebSocket and answers chat frames in order.
type Handler struct {
	replier        api.Replier
	conns          *ConnManager
	allowedOrigins []string
}

// NewHandler creates a new WebSocket chat handler.
func NewHandler(replier api.Replier, conns *ConnManager, allowedOrigins []string) *Handler {
	return &Handler{
		replier:        replier,
		conns:          conns,
		allowedOrigins: allowedOrigins,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	connID := uuid.NewString()
	slog.Info("WebSocket connection request", "conn_id", connID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origin is checked above against the configured list.
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "conn_id", connID)
		return
	}
	defer func() {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "conn_id", connID)
		}
	}()
	conn.SetReadLimit(readLimit)

	h.conns.Register(connID, conn)
	defer h.conns.Unregister(connID, conn)

	h.readLoop(r.Context(), conn, connID)
	slog.Info("WebSocket chat ended", "conn_id", connID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	// Same-origin requests from the bundled UI.
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

// readLoop handles frames one at a time, so replies on a connection keep the
// order of the messages that produced them.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, connID string) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed by client", "conn_id", connID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "conn_id", connID)
			}
			return
		}

		var out OutboundFrame
		var in InboundFrame
		if err := json.Unmarshal(data, &in); err != nil {
			out = OutboundFrame{Type: TypeError, Error: "invalid JSON frame", Status: http.StatusBadRequest}
		} else {
			out = h.handleFrame(ctx, in)
		}

		if err := wsjson.Write(ctx, conn, out); err != nil {
			slog.Debug("WebSocket write error", "error", err, "conn_id", connID)
			return
		}
	}
}

func (h *Handler) handleFrame(ctx context.Context, in InboundFrame) OutboundFrame {
	switch in.Type {
	case TypePing:
		return OutboundFrame{Type: TypePong}
	case "", TypeMessage:
	default:
		return OutboundFrame{Type: TypeError, Error: "unknown frame type: " + in.Type, Status: http.StatusBadRequest}
	}

	res, err := h.replier.Reply(ctx, in.SessionID, in.Message)
	if err != nil {
		status, detail := api.ChatErrorStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Error("WebSocket chat failed", "session_id", in.SessionID, "error", err)
		}
		return OutboundFrame{Type: TypeError, SessionID: in.SessionID, Error: detail, Status: status}
	}

	return OutboundFrame{
		Type:      TypeReply,
		Reply:     res.Reply,
		SessionID: res.SessionID,
		Sources:   res.Sources,
	}
}
