package handlers

import (
	"net/http"

	"clipfinder/internal/contextutil"
	"clipfinder/internal/search"
)

// SearchHandler serves hybrid transcript search.
type SearchHandler struct {
	search *search.Service
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(searchService *search.Service) *SearchHandler {
	return &SearchHandler{search: searchService}
}

// SearchRequest represents a search query.
type SearchRequest struct {
	Query      string   `json:"query"`
	TopK       int      `json:"top_k,omitempty"`
	FilterTags []string `json:"filter_tags,omitempty"`
}

// ServeHTTP runs a hybrid search over indexed transcripts.
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req SearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := h.search.Search(ctx, search.Request{
		Query:      req.Query,
		TopK:       req.TopK,
		FilterTags: req.FilterTags,
	})
	if err != nil {
		logger.WarnContext(ctx, "search failed", "error", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
