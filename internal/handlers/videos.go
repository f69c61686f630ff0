package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"clipfinder/internal/contextutil"
	"clipfinder/internal/pipeline"
	"clipfinder/internal/storage"
)

// VideoHandler serves the video catalog endpoints.
type VideoHandler struct {
	videos       storage.VideoStore
	segments     storage.SegmentStore
	logs         storage.LogStore
	orchestrator *pipeline.Orchestrator
}

// NewVideoHandler creates a new VideoHandler.
func NewVideoHandler(
	videos storage.VideoStore,
	segments storage.SegmentStore,
	logs storage.LogStore,
	orchestrator *pipeline.Orchestrator,
) *VideoHandler {
	return &VideoHandler{
		videos:       videos,
		segments:     segments,
		logs:         logs,
		orchestrator: orchestrator,
	}
}

// VideoResponse represents one video in API responses.
type VideoResponse struct {
	VideoID         string            `json:"video_id"`
	Title           string            `json:"title"`
	ChannelName     string            `json:"channel_name,omitempty"`
	SourceURL       string            `json:"source_url,omitempty"`
	DurationSeconds int               `json:"duration_seconds,omitempty"`
	ThumbnailURL    string            `json:"thumbnail_url,omitempty"`
	FilePath        string            `json:"file_path,omitempty"`
	Status          map[string]string `json:"status"`
	SegmentCount    int               `json:"segment_count"`
	CreatedAt       string            `json:"created_at,omitempty"`
}

func toVideoResponse(v *storage.VideoRecord) VideoResponse {
	resp := VideoResponse{
		VideoID:         v.VideoID,
		Title:           v.Title,
		ChannelName:     v.ChannelName,
		SourceURL:       v.SourceURL,
		DurationSeconds: v.DurationSeconds,
		ThumbnailURL:    v.ThumbnailURL,
		FilePath:        v.FilePath,
		Status: map[string]string{
			"download":   string(v.StatusDownload),
			"transcribe": string(v.StatusTranscribe),
			"index":      string(v.StatusIndex),
		},
		SegmentCount: v.SegmentCount,
	}
	if !v.CreatedAt.IsZero() {
		resp.CreatedAt = v.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// List returns videos, optionally filtered by channel.
func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	channel := strings.TrimSpace(r.URL.Query().Get("channel"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	videos, err := h.videos.List(ctx, channel, limit, offset)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list videos", "error", err)
		writeServiceError(w, err)
		return
	}

	out := make([]VideoResponse, 0, len(videos))
	for i := range videos {
		out = append(out, toVideoResponse(&videos[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"videos": out})
}

// Get returns one video by id.
func (h *VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID := chi.URLParam(r, "video_id")

	video, err := h.videos.Get(ctx, videoID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	count, err := h.segments.CountByVideo(ctx, videoID)
	if err == nil {
		video.SegmentCount = count
	}
	writeJSON(w, http.StatusOK, toVideoResponse(video))
}

// CreateVideoRequest registers an existing local media file.
type CreateVideoRequest struct {
	Path        string `json:"path"`
	Title       string `json:"title,omitempty"`
	ChannelName string `json:"channel_name,omitempty"`
}

// Create imports a local media file into the library and queues processing.
func (h *VideoHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req CreateVideoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	videoID, err := h.orchestrator.AddLocalFile(ctx, req.Path, req.Title, req.ChannelName)
	if err != nil {
		logger.WarnContext(ctx, "failed to import local file", "path", req.Path, "error", err)
		writeServiceError(w, err)
		return
	}

	video, err := h.videos.Get(ctx, videoID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVideoResponse(video))
}

// UpdateMetaRequest represents a partial metadata update.
type UpdateMetaRequest struct {
	Title           *string `json:"title,omitempty"`
	ChannelName     *string `json:"channel_name,omitempty"`
	SourceURL       *string `json:"source_url,omitempty"`
	DurationSeconds *int    `json:"duration_seconds,omitempty"`
	ThumbnailURL    *string `json:"thumbnail_url,omitempty"`
}

// UpdateMeta applies a partial metadata update to a video.
func (h *VideoHandler) UpdateMeta(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	videoID := chi.URLParam(r, "video_id")

	var req UpdateMetaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title must not be empty")
		return
	}
	if req.DurationSeconds != nil && *req.DurationSeconds < 0 {
		writeError(w, http.StatusBadRequest, "duration_seconds must not be negative")
		return
	}

	patch := storage.VideoMetaPatch{
		Title:           req.Title,
		ChannelName:     req.ChannelName,
		SourceURL:       req.SourceURL,
		DurationSeconds: req.DurationSeconds,
		ThumbnailURL:    req.ThumbnailURL,
	}
	if err := h.videos.UpdateMeta(ctx, videoID, patch); err != nil {
		writeServiceError(w, err)
		return
	}

	video, err := h.videos.Get(ctx, videoID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	logger.InfoContext(ctx, "video metadata updated", "video_id", videoID)
	writeJSON(w, http.StatusOK, toVideoResponse(video))
}

// Delete removes a video and everything derived from it.
func (h *VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID := chi.URLParam(r, "video_id")

	if err := h.orchestrator.DeleteVideo(ctx, videoID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": videoID})
}

// SegmentResponse represents one transcript segment in API responses.
type SegmentResponse struct {
	SegmentID string  `json:"segment_id"`
	StartSec  float64 `json:"start_sec"`
	EndSec    float64 `json:"end_sec"`
	Text      string  `json:"text"`
	WordsJSON string  `json:"words_json,omitempty"`
}

// Transcript returns the ordered transcript segments for a video.
func (h *VideoHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID := chi.URLParam(r, "video_id")

	if _, err := h.videos.Get(ctx, videoID); err != nil {
		writeServiceError(w, err)
		return
	}
	segments, err := h.segments.ListByVideo(ctx, videoID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]SegmentResponse, 0, len(segments))
	for _, s := range segments {
		out = append(out, SegmentResponse{
			SegmentID: s.SegmentID,
			StartSec:  s.StartSec,
			EndSec:    s.EndSec,
			Text:      s.Text,
			WordsJSON: s.WordsJSON,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"video_id": videoID, "segments": out})
}

// LogResponse represents one processing log line.
type LogResponse struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// Logs returns recent processing log lines for a video.
func (h *VideoHandler) Logs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID := chi.URLParam(r, "video_id")

	if _, err := h.videos.Get(ctx, videoID); err != nil {
		writeServiceError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.logs.ListByVideo(ctx, videoID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]LogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, LogResponse{
			Level:     e.Level,
			Message:   e.Message,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"video_id": videoID, "logs": out})
}

// Transcribe queues the transcribe stage for a downloaded video.
func (h *VideoHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID := chi.URLParam(r, "video_id")

	if err := h.orchestrator.EnqueueTranscribe(ctx, videoID, false); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"video_id": videoID, "status": "queued"})
}

// Index queues the index stage for a transcribed video.
func (h *VideoHandler) Index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID := chi.URLParam(r, "video_id")

	if err := h.orchestrator.EnqueueIndex(ctx, videoID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"video_id": videoID, "status": "queued"})
}

// Reprocess resets a video's transcript state and queues a fresh run.
func (h *VideoHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID := chi.URLParam(r, "video_id")

	if err := h.orchestrator.Reprocess(ctx, videoID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"video_id": videoID, "status": "queued"})
}

// Scan walks the video directory and registers files not yet in the
// catalog. With ?process=true the untranscribed backlog is queued as well.
func (h *VideoHandler) Scan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	added, err := h.orchestrator.Scan(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "scan failed", "error", err)
		writeServiceError(w, err)
		return
	}

	queued := 0
	if p := r.URL.Query().Get("process"); p == "true" || p == "1" {
		queued, err = h.orchestrator.ProcessPending(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "post-scan processing failed", "error", err)
			writeServiceError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added, "queued": queued})
}

// ProcessPending queues transcription for videos without segments.
func (h *VideoHandler) ProcessPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	queued, err := h.orchestrator.ProcessPending(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "process-pending failed", "error", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"queued": queued})
}
