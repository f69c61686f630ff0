package handlers

import (
	"net/http"

	"clipfinder/internal/contextutil"
	"clipfinder/internal/pipeline"
)

// DownloadHandler queues video downloads.
type DownloadHandler struct {
	orchestrator *pipeline.Orchestrator
}

// NewDownloadHandler creates a new DownloadHandler.
func NewDownloadHandler(orchestrator *pipeline.Orchestrator) *DownloadHandler {
	return &DownloadHandler{orchestrator: orchestrator}
}

// DownloadRequest represents a download submission.
type DownloadRequest struct {
	URL     string `json:"url"`
	Quality string `json:"quality,omitempty"`
	// AutoProcess chains transcription and indexing after the download.
	// Omitting it means true; send false to stop after the download.
	AutoProcess *bool `json:"auto_process,omitempty"`
}

// DownloadResponse acknowledges a queued download.
type DownloadResponse struct {
	JobKey string `json:"job_key"`
	Status string `json:"status"`
}

// ServeHTTP queues a download job for the given URL.
func (h *DownloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req DownloadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	chain := req.AutoProcess == nil || *req.AutoProcess
	key, err := h.orchestrator.EnqueueDownload(ctx, req.URL, req.Quality, chain)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	logger.InfoContext(ctx, "download queued", "job_key", key, "auto_process", chain)
	writeJSON(w, http.StatusAccepted, DownloadResponse{JobKey: key, Status: "queued"})
}
