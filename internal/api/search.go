package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ashureev/pj-companion/internal/search"
	"github.com/go-chi/chi/v5"
)

// ResultFetcher runs a web search.
type ResultFetcher interface {
	Fetch(ctx context.Context, query string, limit int) ([]search.Result, error)
}

// SearchHandler exposes the web search used for chat enrichment.
type SearchHandler struct {
	fetcher ResultFetcher
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(fetcher ResultFetcher) *SearchHandler {
	return &SearchHandler{fetcher: fetcher}
}

// RegisterRoutes registers search routes.
func (h *SearchHandler) RegisterRoutes(r chi.Router) {
	r.Get("/search", h.Search)
}

// Search returns {"query", "results"} for ?q= with an optional ?limit=.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		Error(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	limit := search.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			Error(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = search.BoundLimit(n)
	}

	results, err := h.fetcher.Fetch(r.Context(), query, limit)
	if err != nil {
		slog.Warn("Search failed", "query", query, "error", err)
		Error(w, http.StatusBadGateway, "search failed: "+err.Error())
		return
	}
	if results == nil {
		results = []search.Result{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": results,
	})
}
