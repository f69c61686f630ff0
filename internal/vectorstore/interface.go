package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks clipfinder/internal/vectorstore VectorStore

import "context"

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// Filter restricts a search to specific videos or channels.
// Empty slices mean no restriction on that axis.
type Filter struct {
	VideoIDs []string
	Channels []string
}

// Empty reports whether the filter imposes no restriction.
func (f *Filter) Empty() bool {
	return f == nil || (len(f.VideoIDs) == 0 && len(f.Channels) == 0)
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search performs a similarity search with an optional filter.
	Search(ctx context.Context, collection string, query []float32, k int, filter *Filter) ([]SearchResult, error)

	// DeleteByVideo removes all points belonging to a video.
	DeleteByVideo(ctx context.Context, collection, videoID string) error

	// CountByVideo returns the number of points stored for a video.
	CountByVideo(ctx context.Context, collection, videoID string) (int, error)

	// ListVideoIDs returns the distinct video ids present in the collection.
	ListVideoIDs(ctx context.Context, collection string) ([]string, error)

	// EnsureCollection creates the collection if missing and validates
	// the vector size if it already exists.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error
}
