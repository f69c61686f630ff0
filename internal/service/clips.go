package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"clipfinder/internal/contextutil"
	"clipfinder/internal/media"
	"clipfinder/internal/storage"
)

// Cutter extracts a clip from a source video file.
type Cutter interface {
	CutClip(ctx context.Context, req media.CutRequest) error
}

// ClipService produces and lists clips cut from downloaded videos.
type ClipService struct {
	videos   storage.VideoStore
	clips    storage.ClipStore
	cutter   Cutter
	clipsDir string
}

// NewClipService creates a ClipService writing clip files under clipsDir.
func NewClipService(videos storage.VideoStore, clips storage.ClipStore, cutter Cutter, clipsDir string) *ClipService {
	return &ClipService{
		videos:   videos,
		clips:    clips,
		cutter:   cutter,
		clipsDir: clipsDir,
	}
}

// CreateClipRequest describes one clip to produce.
type CreateClipRequest struct {
	VideoID string
	Start   float64
	End     float64
	// Precise re-encodes for frame-accurate boundaries.
	Precise bool
	// WithMargins widens the range by speech safety margins. Set for clips
	// cut directly from search hits, unset for manually chosen boundaries.
	WithMargins bool
}

// CreateClip cuts a clip from the video's downloaded file and records it.
func (s *ClipService) CreateClip(ctx context.Context, req CreateClipRequest) (*storage.ClipRecord, error) {
	logger := contextutil.LoggerFromContext(ctx)

	videoID := strings.TrimSpace(req.VideoID)
	if videoID == "" {
		return nil, &ValidationError{Field: "video_id", Message: "must not be empty"}
	}
	if req.Start < 0 {
		return nil, &ValidationError{Field: "start", Message: "must not be negative"}
	}
	if req.End <= req.Start {
		return nil, &ValidationError{Field: "end", Message: "must be greater than start"}
	}

	video, err := s.videos.Get(ctx, videoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load video: %w", err)
	}
	if video.FilePath == "" {
		return nil, &ValidationError{Field: "video_id", Message: "video has no downloaded file"}
	}
	if _, err := os.Stat(video.FilePath); err != nil {
		return nil, fmt.Errorf("video file %s: %w", video.FilePath, ErrNotFound)
	}

	if err := os.MkdirAll(s.clipsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create clips directory: %w", err)
	}

	clipID := uuid.NewString()[:8]
	dst := filepath.Join(s.clipsDir, fmt.Sprintf("%s_%s.mp4", videoID, clipID))

	if err := s.cutter.CutClip(ctx, media.CutRequest{
		Src:         video.FilePath,
		Dst:         dst,
		Start:       req.Start,
		End:         req.End,
		Precise:     req.Precise,
		WithMargins: req.WithMargins,
	}); err != nil {
		return nil, fmt.Errorf("failed to cut clip: %w", err)
	}

	record := &storage.ClipRecord{
		ClipID:   clipID,
		VideoID:  videoID,
		StartSec: req.Start,
		EndSec:   req.End,
		Path:     dst,
	}
	if err := s.clips.Insert(ctx, record); err != nil {
		// The file exists but the row does not; remove the orphan
		_ = os.Remove(dst)
		return nil, fmt.Errorf("failed to record clip: %w", err)
	}

	logger.InfoContext(ctx, "clip created",
		"clip_id", clipID, "video_id", videoID, "start", req.Start, "end", req.End)
	return record, nil
}

// ListClips returns produced clips, optionally filtered by video.
func (s *ClipService) ListClips(ctx context.Context, videoID string) ([]storage.ClipRecord, error) {
	clips, err := s.clips.List(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clips: %w", err)
	}
	return clips, nil
}
