package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"clipfinder/internal/contextutil"
	"clipfinder/internal/service"
	"clipfinder/internal/storage"
	"clipfinder/internal/vectorstore"
)

const defaultBatchSize = 64

// Embedder generates embedding vectors for a batch of texts.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline indexes transcript segments into Qdrant and the full-text table.
type Pipeline struct {
	videoRepo   storage.VideoStore
	segmentRepo storage.SegmentStore
	embedder    Embedder
	vectorStore vectorstore.VectorStore
	collection  string
	batchSize   int
	logger      *slog.Logger
}

// NewPipeline creates a new indexing pipeline.
func NewPipeline(
	videoRepo storage.VideoStore,
	segmentRepo storage.SegmentStore,
	embedder Embedder,
	vectorStore vectorstore.VectorStore,
	collection string,
) *Pipeline {
	return &Pipeline{
		videoRepo:   videoRepo,
		segmentRepo: segmentRepo,
		embedder:    embedder,
		vectorStore: vectorStore,
		collection:  collection,
		batchSize:   defaultBatchSize,
		logger:      slog.Default(),
	}
}

// PointID derives the deterministic Qdrant point id for a segment.
// Re-indexing the same segment overwrites its previous point.
func PointID(segmentID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(segmentID)).String()
}

// IndexVideo embeds all segments of a video and stores them in the vector
// collection and the full-text index. The operation replaces any previous
// index state for the video.
func (p *Pipeline) IndexVideo(ctx context.Context, videoID string) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	video, err := p.videoRepo.Get(ctx, videoID)
	if err != nil {
		return 0, fmt.Errorf("failed to load video: %w", err)
	}

	segments, err := p.segmentRepo.ListByVideo(ctx, videoID)
	if err != nil {
		return 0, fmt.Errorf("failed to load segments: %w", err)
	}
	if len(segments) == 0 {
		return 0, fmt.Errorf("no segments to index for video %s", videoID)
	}

	// Old points may exist from a previous transcript with different
	// segment ids, so clear them before writing the new set.
	if err := p.vectorStore.DeleteByVideo(ctx, p.collection, videoID); err != nil {
		logger.WarnContext(ctx, "failed to clear old points", "video_id", videoID, "error", err)
	}

	indexed := 0
	for start := 0; start < len(segments); start += p.batchSize {
		end := start + p.batchSize
		if end > len(segments) {
			end = len(segments)
		}
		batch := segments[start:end]

		texts := make([]string, len(batch))
		for i, seg := range batch {
			texts[i] = seg.Text
		}

		embeddings, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return indexed, service.NewStageError(service.EmbeddingError, fmt.Errorf("failed to embed batch: %w", err))
		}
		if len(embeddings) != len(batch) {
			return indexed, service.NewStageError(service.EmbeddingError,
				fmt.Errorf("embedding count mismatch: expected %d, got %d", len(batch), len(embeddings)))
		}

		points := make([]vectorstore.Point, len(batch))
		for i, seg := range batch {
			points[i] = vectorstore.Point{
				ID:  PointID(seg.SegmentID),
				Vec: embeddings[i],
				Meta: map[string]any{
					"segment_id":   seg.SegmentID,
					"video_id":     seg.VideoID,
					"channel_name": video.ChannelName,
					"start":        seg.StartSec,
					"end":          seg.EndSec,
					"text":         seg.Text,
				},
			}
		}

		if err := p.vectorStore.Upsert(ctx, p.collection, points); err != nil {
			return indexed, fmt.Errorf("failed to upsert vectors: %w", err)
		}
		indexed += len(batch)
	}

	if err := p.segmentRepo.ReplaceFTSForVideo(ctx, videoID, segments); err != nil {
		return indexed, fmt.Errorf("failed to rebuild full-text index: %w", err)
	}

	logger.InfoContext(ctx, "indexed video", "video_id", videoID, "segments", indexed)
	return indexed, nil
}

// RemoveVideo deletes all index state for a video.
func (p *Pipeline) RemoveVideo(ctx context.Context, videoID string) error {
	if err := p.vectorStore.DeleteByVideo(ctx, p.collection, videoID); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	return nil
}

// CountPoints returns the number of vector points stored for a video.
func (p *Pipeline) CountPoints(ctx context.Context, videoID string) (int, error) {
	return p.vectorStore.CountByVideo(ctx, p.collection, videoID)
}

// OrphanedVideoIDs returns video ids present in the vector collection but
// absent from the catalog.
func (p *Pipeline) OrphanedVideoIDs(ctx context.Context) ([]string, error) {
	indexed, err := p.vectorStore.ListVideoIDs(ctx, p.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexed videos: %w", err)
	}

	known, _, err := p.videoRepo.KnownIDsAndPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load known videos: %w", err)
	}

	var orphaned []string
	for _, id := range indexed {
		if _, ok := known[id]; !ok {
			orphaned = append(orphaned, id)
		}
	}
	return orphaned, nil
}
