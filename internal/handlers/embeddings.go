package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"clipfinder/internal/contextutil"
	"clipfinder/internal/indexer"
)

// EmbeddingHandler exposes per-video embedding inspection and cleanup.
type EmbeddingHandler struct {
	indexer *indexer.Pipeline
}

// NewEmbeddingHandler creates a new EmbeddingHandler.
func NewEmbeddingHandler(indexerPipeline *indexer.Pipeline) *EmbeddingHandler {
	return &EmbeddingHandler{indexer: indexerPipeline}
}

// Count returns the number of vector points stored for a video.
func (h *EmbeddingHandler) Count(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID := chi.URLParam(r, "video_id")

	count, err := h.indexer.CountPoints(ctx, videoID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"video_id": videoID, "points": count})
}

// Delete removes all vector points for a video.
func (h *EmbeddingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	videoID := chi.URLParam(r, "video_id")

	if err := h.indexer.RemoveVideo(ctx, videoID); err != nil {
		writeServiceError(w, err)
		return
	}
	logger.InfoContext(ctx, "embeddings removed", "video_id", videoID)
	writeJSON(w, http.StatusOK, map[string]string{"removed": videoID})
}

// Orphaned lists video ids present in the vector index but not the catalog.
func (h *EmbeddingHandler) Orphaned(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ids, err := h.indexer.OrphanedVideoIDs(ctx)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orphaned": ids})
}
