package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_segment_store.go -package=mocks clipfinder/internal/storage SegmentStore

import (
	"context"
	"database/sql"
	"fmt"
)

// SegmentStore defines the interface for transcript segment operations,
// including the FTS5 full-text index maintained by the index stage.
type SegmentStore interface {
	// ReplaceForVideo atomically replaces all segments for a video.
	ReplaceForVideo(ctx context.Context, videoID string, segments []SegmentRecord) error
	// ListByVideo returns segments ordered by start time.
	ListByVideo(ctx context.Context, videoID string) ([]SegmentRecord, error)
	// DeleteByVideo removes all segments and FTS rows for a video.
	DeleteByVideo(ctx context.Context, videoID string) error
	// CountByVideo returns the number of segments for a video.
	CountByVideo(ctx context.Context, videoID string) (int, error)
	// ReplaceFTSForVideo rebuilds the FTS rows for a video from the given segments.
	ReplaceFTSForVideo(ctx context.Context, videoID string, segments []SegmentRecord) error
	// SearchFTS runs a BM25 full-text query. Returns matches ordered best-first.
	SearchFTS(ctx context.Context, query string, limit int) ([]FTSResult, error)
}

// SegmentRepo provides methods for segment operations.
// It implements the SegmentStore interface.
type SegmentRepo struct {
	db  *sql.DB
	fts bool
}

// NewSegmentRepo creates a new SegmentRepo. When SQLite lacks FTS5 the
// full-text methods become no-ops and the lexical search leg goes dark;
// vector search keeps working.
func NewSegmentRepo(db *sql.DB) *SegmentRepo {
	return &SegmentRepo{db: db, fts: FTS5Enabled(db)}
}

// FTSEnabled reports whether the full-text index is available.
func (r *SegmentRepo) FTSEnabled() bool {
	return r.fts
}

// ReplaceForVideo atomically replaces all segments for a video.
// Used by the transcribe stage; old segments from a prior run are dropped
// in the same transaction so a failure never leaves a mixed transcript.
func (r *SegmentRepo) ReplaceForVideo(ctx context.Context, videoID string, segments []SegmentRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM segments WHERE video_id = ?", videoID); err != nil {
		return fmt.Errorf("failed to delete old segments: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO segments (segment_id, video_id, start_sec, end_sec, text, words_json) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, seg := range segments {
		if _, err := stmt.ExecContext(ctx,
			seg.SegmentID, videoID, seg.StartSec, seg.EndSec, seg.Text, seg.WordsJSON); err != nil {
			return fmt.Errorf("failed to insert segment %s: %w", seg.SegmentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit segments: %w", err)
	}
	return nil
}

// ListByVideo returns segments ordered by start time.
// Returns an empty slice if the video has no segments (not an error).
func (r *SegmentRepo) ListByVideo(ctx context.Context, videoID string) ([]SegmentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT segment_id, video_id, start_sec, end_sec, text, words_json
		 FROM segments WHERE video_id = ? ORDER BY start_sec, segment_id`,
		videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []SegmentRecord
	for rows.Next() {
		var s SegmentRecord
		if err := rows.Scan(&s.SegmentID, &s.VideoID, &s.StartSec, &s.EndSec, &s.Text, &s.WordsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// DeleteByVideo removes all segments and FTS rows for a video.
func (r *SegmentRepo) DeleteByVideo(ctx context.Context, videoID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM segments WHERE video_id = ?", videoID); err != nil {
		return fmt.Errorf("failed to delete segments: %w", err)
	}
	if !r.fts {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM segments_fts WHERE video_id = ?", videoID); err != nil {
		return fmt.Errorf("failed to delete FTS rows: %w", err)
	}
	return nil
}

// CountByVideo returns the number of segments for a video.
func (r *SegmentRepo) CountByVideo(ctx context.Context, videoID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM segments WHERE video_id = ?", videoID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count segments: %w", err)
	}
	return n, nil
}

// ReplaceFTSForVideo rebuilds the FTS rows for a video from the given segments.
// Idempotent: re-running on the same segments leaves the same rows.
func (r *SegmentRepo) ReplaceFTSForVideo(ctx context.Context, videoID string, segments []SegmentRecord) error {
	if !r.fts {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM segments_fts WHERE video_id = ?", videoID); err != nil {
		return fmt.Errorf("failed to clear FTS rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO segments_fts (segment_id, video_id, text) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare FTS insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, seg := range segments {
		if _, err := stmt.ExecContext(ctx, seg.SegmentID, videoID, seg.Text); err != nil {
			return fmt.Errorf("failed to insert FTS row %s: %w", seg.SegmentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit FTS rows: %w", err)
	}
	return nil
}

// SearchFTS runs a BM25 full-text query. Returns matches ordered best-first.
// Returns an empty slice for an empty or non-matching query.
func (r *SegmentRepo) SearchFTS(ctx context.Context, query string, limit int) ([]FTSResult, error) {
	if !r.fts || query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT f.segment_id, f.video_id, COALESCE(s.start_sec, 0), COALESCE(s.end_sec, 0),
		        f.text, bm25(segments_fts)
		 FROM segments_fts f
		 LEFT JOIN segments s ON s.segment_id = f.segment_id
		 WHERE segments_fts MATCH ?
		 ORDER BY bm25(segments_fts) LIMIT ?`,
		query, limit)
	if err != nil {
		// FTS5 raises syntax errors for queries with special tokens; treat as no match.
		return nil, nil
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []FTSResult
	for rows.Next() {
		var f FTSResult
		if err := rows.Scan(&f.SegmentID, &f.VideoID, &f.StartSec, &f.EndSec, &f.Text, &f.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan FTS result: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}
