package transcriber

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"clipfinder/internal/service"
	"clipfinder/internal/storage"
)

// AudioExtractor produces a speech-to-text friendly audio file from a video.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, src, dst string) error
}

// Service runs the full transcribe stage for a video file: audio
// extraction followed by speech-to-text.
type Service struct {
	extractor AudioExtractor
	whisper   *Transcriber
	workDir   string
}

// NewService creates a transcription service. workDir holds temporary
// audio files and is created on first use.
func NewService(extractor AudioExtractor, whisper *Transcriber, workDir string) *Service {
	return &Service{
		extractor: extractor,
		whisper:   whisper,
		workDir:   workDir,
	}
}

// TranscribeVideo extracts audio from filePath and transcribes it,
// returning segment records for the video.
func (s *Service) TranscribeVideo(ctx context.Context, videoID, filePath string) ([]storage.SegmentRecord, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, service.NewStageError(service.DecodeError, fmt.Errorf("video file unreadable: %w", err))
	}

	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	audioPath := filepath.Join(s.workDir, videoID+".mp3")
	defer func() {
		_ = os.Remove(audioPath)
	}()

	if err := s.extractor.ExtractAudio(ctx, filePath, audioPath); err != nil {
		return nil, service.NewStageError(service.DecodeError, fmt.Errorf("audio extraction failed: %w", err))
	}

	return s.whisper.Transcribe(ctx, audioPath, videoID)
}
