package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"clipfinder/internal/contextutil"
	"clipfinder/internal/service"
	"clipfinder/internal/storage"
)

// Transcriber produces timed transcript segments through a Whisper-compatible
// speech-to-text API.
type Transcriber struct {
	api   *openai.Client
	Model string
}

// New creates a Transcriber. baseURL may point at any OpenAI-compatible
// server; leave it empty for the default endpoint.
func New(baseURL, apiKey, model string) *Transcriber {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &Transcriber{
		api:   openai.NewClientWithConfig(cfg),
		Model: model,
	}
}

// wordTiming is the JSON shape stored in segments.words_json.
type wordTiming struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// apiSegment and apiWord hold the verbose-json fields this package needs.
// The client library exposes segments and words as anonymous struct
// slices, so they are copied into named types before further use.
type apiSegment struct {
	Start float64
	End   float64
	Text  string
}

type apiWord struct {
	Word  string
	Start float64
	End   float64
}

// mapResponse extracts segments and word timings from an API response.
func mapResponse(resp *openai.AudioResponse) ([]apiSegment, []apiWord) {
	var segs []apiSegment
	for _, s := range resp.Segments {
		segs = append(segs, apiSegment{Start: s.Start, End: s.End, Text: s.Text})
	}
	var words []apiWord
	for _, w := range resp.Words {
		words = append(words, apiWord{Word: w.Word, Start: w.Start, End: w.End})
	}
	return segs, words
}

// Transcribe runs speech-to-text on an audio file and returns segment
// records for the video. Empty segments are dropped.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath, videoID string) ([]storage.SegmentRecord, error) {
	logger := contextutil.LoggerFromContext(ctx)

	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, service.NewStageError(service.DecodeError, fmt.Errorf("audio file unreadable: %w", err))
	}
	if info.Size() == 0 {
		return nil, service.NewStageError(service.DecodeError, fmt.Errorf("audio file is empty: %s", audioPath))
	}

	resp, err := t.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.Model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
			openai.TranscriptionTimestampGranularityWord,
		},
	})
	if err != nil {
		return nil, service.NewStageError(service.ModelError, fmt.Errorf("transcription failed: %w", err))
	}

	apiSegs, words := mapResponse(&resp)
	segments := buildSegments(videoID, apiSegs, words)
	logger.InfoContext(ctx, "transcription complete",
		"video_id", videoID, "language", resp.Language, "segments", len(segments))
	return segments, nil
}

// buildSegments converts API segments into storage records, attaching word
// timings to the segment whose time range contains the word's midpoint.
// Segments with empty text are skipped; their index is still consumed so
// segment ids stay aligned with the model's numbering.
func buildSegments(videoID string, apiSegments []apiSegment, words []apiWord) []storage.SegmentRecord {
	var out []storage.SegmentRecord
	for idx, seg := range apiSegments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		rec := storage.SegmentRecord{
			SegmentID: fmt.Sprintf("%s-%d", videoID, idx),
			VideoID:   videoID,
			StartSec:  seg.Start,
			EndSec:    seg.End,
			Text:      text,
		}

		if timings := wordsInRange(words, seg.Start, seg.End); len(timings) > 0 {
			if data, err := json.Marshal(timings); err == nil {
				rec.WordsJSON = string(data)
			}
		}
		out = append(out, rec)
	}
	return out
}

// wordsInRange selects the words whose midpoint falls inside [start, end).
func wordsInRange(words []apiWord, start, end float64) []wordTiming {
	var out []wordTiming
	for _, w := range words {
		mid := (w.Start + w.End) / 2
		if mid < start || mid >= end {
			continue
		}
		word := strings.TrimSpace(w.Word)
		if word == "" {
			continue
		}
		out = append(out, wordTiming{Word: word, Start: w.Start, End: w.End})
	}
	return out
}
