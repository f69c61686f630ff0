package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"clipfinder/internal/pipeline"
	"clipfinder/internal/storage"
)

// QueueHandler serves the job queue endpoints.
type QueueHandler struct {
	orchestrator *pipeline.Orchestrator
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(orchestrator *pipeline.Orchestrator) *QueueHandler {
	return &QueueHandler{orchestrator: orchestrator}
}

// QueueEntryResponse represents one queue entry in API responses.
type QueueEntryResponse struct {
	VideoID   string `json:"video_id"`
	Stage     string `json:"stage"`
	Status    string `json:"status"`
	Title     string `json:"title,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toQueueEntryResponse(e storage.QueueEntry) QueueEntryResponse {
	return QueueEntryResponse{
		VideoID:   e.VideoID,
		Stage:     string(e.Stage),
		Status:    string(e.Status),
		Title:     e.Title,
		Error:     e.Error,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// List returns all queue entries, newest first.
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.orchestrator.QueueEntries(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]QueueEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toQueueEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"queue": out})
}

// Dequeue removes a terminal queue entry. Active entries are refused.
func (h *QueueHandler) Dequeue(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "video_id")
	if err := h.orchestrator.Dequeue(r.Context(), key); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": key})
}

// Clear removes all terminal queue entries.
func (h *QueueHandler) Clear(w http.ResponseWriter, r *http.Request) {
	removed, err := h.orchestrator.ClearFinished(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}
