package handlers

import (
	"net/http"
	"path/filepath"
	"time"

	"clipfinder/internal/contextutil"
	"clipfinder/internal/service"
	"clipfinder/internal/storage"
)

// ClipHandler serves clip creation and listing.
type ClipHandler struct {
	clips *service.ClipService
}

// NewClipHandler creates a new ClipHandler.
func NewClipHandler(clips *service.ClipService) *ClipHandler {
	return &ClipHandler{clips: clips}
}

// CreateClipRequest represents a clip creation request.
type CreateClipRequest struct {
	VideoID     string  `json:"video_id"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Precise     bool    `json:"precise,omitempty"`
	WithMargins bool    `json:"with_margins,omitempty"`
}

// ClipResponse represents one produced clip.
type ClipResponse struct {
	ClipID    string  `json:"clip_id"`
	VideoID   string  `json:"video_id"`
	StartSec  float64 `json:"start_sec"`
	EndSec    float64 `json:"end_sec"`
	Filename  string  `json:"filename"`
	URL       string  `json:"url"`
	CreatedAt string  `json:"created_at,omitempty"`
}

func toClipResponse(c *storage.ClipRecord) ClipResponse {
	filename := filepath.Base(c.Path)
	resp := ClipResponse{
		ClipID:   c.ClipID,
		VideoID:  c.VideoID,
		StartSec: c.StartSec,
		EndSec:   c.EndSec,
		Filename: filename,
		URL:      "/files/clips/" + filename,
	}
	if !c.CreatedAt.IsZero() {
		resp.CreatedAt = c.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// Create cuts a clip from a downloaded video.
func (h *ClipHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req CreateClipRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.clips.CreateClip(ctx, service.CreateClipRequest{
		VideoID:     req.VideoID,
		Start:       req.Start,
		End:         req.End,
		Precise:     req.Precise,
		WithMargins: req.WithMargins,
	})
	if err != nil {
		logger.WarnContext(ctx, "clip creation failed", "video_id", req.VideoID, "error", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toClipResponse(record))
}

// List returns produced clips, optionally filtered by video id.
func (h *ClipHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID := r.URL.Query().Get("video_id")
	clips, err := h.clips.ListClips(ctx, videoID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]ClipResponse, 0, len(clips))
	for i := range clips {
		out = append(out, toClipResponse(&clips[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"clips": out})
}
