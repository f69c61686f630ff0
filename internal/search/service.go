package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"clipfinder/internal/contextutil"
	"clipfinder/internal/service"
	"clipfinder/internal/storage"
	"clipfinder/internal/vectorstore"
)

// rrfK is the reciprocal rank fusion constant. Larger values flatten the
// difference between top ranks.
const rrfK = 60

// overlapThreshold is the time-overlap ratio above which two hits from
// the same video are considered duplicates.
const overlapThreshold = 0.5

// Embedder turns a query string into an embedding vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Request is one search invocation.
type Request struct {
	Query      string
	TopK       int
	FilterTags []string // channel names to restrict the search to
}

// Result is one scored transcript hit.
type Result struct {
	SegmentID   string  `json:"segment_id"`
	VideoID     string  `json:"video_id"`
	Title       string  `json:"title"`
	ChannelName string  `json:"channel_name,omitempty"`
	StartSec    float64 `json:"start_sec"`
	EndSec      float64 `json:"end_sec"`
	Text        string  `json:"text"`
	Score       float64 `json:"score"`
}

// Service runs hybrid semantic plus full-text search over transcripts.
type Service struct {
	embedder    Embedder
	vectorStore vectorstore.VectorStore
	collection  string
	segments    storage.SegmentStore
	videos      storage.VideoStore
	defaultTopK int
}

// NewService creates a search service.
func NewService(
	embedder Embedder,
	vectorStore vectorstore.VectorStore,
	collection string,
	segments storage.SegmentStore,
	videos storage.VideoStore,
	defaultTopK int,
) *Service {
	if defaultTopK <= 0 {
		defaultTopK = 20
	}
	return &Service{
		embedder:    embedder,
		vectorStore: vectorStore,
		collection:  collection,
		segments:    segments,
		videos:      videos,
		defaultTopK: defaultTopK,
	}
}

// candidate accumulates fusion scores for one segment.
type candidate struct {
	SegmentID string
	VideoID   string
	StartSec  float64
	EndSec    float64
	Text      string
	Score     float64
}

// Search runs the hybrid query and returns fused, deduplicated results.
// Both retrieval legs run against the channel filter, so filtering never
// eats into the result budget.
func (s *Service) Search(ctx context.Context, req Request) ([]Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, &service.ValidationError{Field: "query", Message: "must not be empty"}
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.defaultTopK
	}
	fetchK := topK * 3

	var allowed map[string]bool
	var filter *vectorstore.Filter
	if len(req.FilterTags) > 0 {
		ids, err := s.videos.ListIDsByChannels(ctx, req.FilterTags)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve channel filter: %w", err)
		}
		if len(ids) == 0 {
			return []Result{}, nil
		}
		allowed = make(map[string]bool, len(ids))
		for _, id := range ids {
			allowed[id] = true
		}
		filter = &vectorstore.Filter{Channels: req.FilterTags}
	}

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, service.NewStageError(service.EmbeddingError, fmt.Errorf("failed to embed query: %w", err))
	}

	vecResults, err := s.vectorStore.Search(ctx, s.collection, vec, fetchK, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	ftsResults, err := s.segments.SearchFTS(ctx, query, fetchK)
	if err != nil {
		// The vector leg alone still gives usable results
		logger.WarnContext(ctx, "full-text search failed", "error", err)
		ftsResults = nil
	}

	candidates := fuse(vecResults, ftsResults, allowed)
	sortCandidates(candidates)
	deduped := dedupeOverlaps(candidates)
	if len(deduped) > topK {
		deduped = deduped[:topK]
	}

	results, err := s.attachVideoMeta(ctx, deduped)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "search complete", "query", query, "results", len(results))
	return results, nil
}

// fuse merges both retrieval legs with reciprocal rank fusion. A segment
// appearing in both legs accumulates both scores.
func fuse(vecResults []vectorstore.SearchResult, ftsResults []storage.FTSResult, allowed map[string]bool) []*candidate {
	byID := make(map[string]*candidate)

	for rank, r := range vecResults {
		segID := metaString(r.Meta, "segment_id")
		videoID := metaString(r.Meta, "video_id")
		if segID == "" || videoID == "" {
			continue
		}
		if allowed != nil && !allowed[videoID] {
			continue
		}
		c, ok := byID[segID]
		if !ok {
			c = &candidate{
				SegmentID: segID,
				VideoID:   videoID,
				StartSec:  metaFloat(r.Meta, "start"),
				EndSec:    metaFloat(r.Meta, "end"),
				Text:      metaString(r.Meta, "text"),
			}
			byID[segID] = c
		}
		c.Score += 1.0 / float64(rrfK+rank+1)
	}

	for rank, r := range ftsResults {
		if allowed != nil && !allowed[r.VideoID] {
			continue
		}
		c, ok := byID[r.SegmentID]
		if !ok {
			c = &candidate{
				SegmentID: r.SegmentID,
				VideoID:   r.VideoID,
				StartSec:  r.StartSec,
				EndSec:    r.EndSec,
				Text:      r.Text,
			}
			byID[r.SegmentID] = c
		}
		c.Score += 1.0 / float64(rrfK+rank+1)
	}

	out := make([]*candidate, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	return out
}

// sortCandidates orders by score descending with deterministic tie-breaks.
func sortCandidates(cs []*candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		if cs[i].StartSec != cs[j].StartSec {
			return cs[i].StartSec < cs[j].StartSec
		}
		if cs[i].VideoID != cs[j].VideoID {
			return cs[i].VideoID < cs[j].VideoID
		}
		return cs[i].SegmentID < cs[j].SegmentID
	})
}

// dedupeOverlaps drops hits that heavily overlap an already kept hit from
// the same video. Input must be sorted best-first.
func dedupeOverlaps(cs []*candidate) []*candidate {
	var kept []*candidate
	for _, c := range cs {
		dup := false
		for _, k := range kept {
			if k.VideoID == c.VideoID && overlapRatio(k.StartSec, k.EndSec, c.StartSec, c.EndSec) >= overlapThreshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, c)
		}
	}
	return kept
}

// overlapRatio returns the time intersection relative to the shorter span.
func overlapRatio(aStart, aEnd, bStart, bEnd float64) float64 {
	start := aStart
	if bStart > start {
		start = bStart
	}
	end := aEnd
	if bEnd < end {
		end = bEnd
	}
	if end <= start {
		return 0
	}
	shorter := aEnd - aStart
	if d := bEnd - bStart; d < shorter {
		shorter = d
	}
	if shorter <= 0 {
		return 0
	}
	return (end - start) / shorter
}

// attachVideoMeta fills in title and channel for each hit.
func (s *Service) attachVideoMeta(ctx context.Context, cs []*candidate) ([]Result, error) {
	cache := make(map[string]*storage.VideoRecord)
	results := make([]Result, 0, len(cs))
	for _, c := range cs {
		video, ok := cache[c.VideoID]
		if !ok {
			var err error
			video, err = s.videos.Get(ctx, c.VideoID)
			if err != nil {
				// Index may be ahead of the catalog; skip the stale hit
				continue
			}
			cache[c.VideoID] = video
		}
		results = append(results, Result{
			SegmentID:   c.SegmentID,
			VideoID:     c.VideoID,
			Title:       video.Title,
			ChannelName: video.ChannelName,
			StartSec:    c.StartSec,
			EndSec:      c.EndSec,
			Text:        c.Text,
			Score:       c.Score,
		})
	}
	return results, nil
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

func metaFloat(meta map[string]any, key string) float64 {
	switch v := meta[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}
