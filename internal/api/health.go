package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SessionCounter reports how many sessions are held.
type SessionCounter interface {
	Len() int
}

// HealthHandler serves the status endpoints.
type HealthHandler struct {
	sessions SessionCounter
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(sessions SessionCounter) *HealthHandler {
	return &HealthHandler{sessions: sessions}
}

// RegisterRoutes registers status routes.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
}

// Root identifies the assistant.
func (h *HealthHandler) Root(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{
		"assistant": "PJ",
		"status":    "online",
	})
}

// Health reports liveness and the number of held sessions.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": h.sessions.Len(),
	})
}
