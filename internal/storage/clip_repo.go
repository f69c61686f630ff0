package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// ClipStore defines the interface for produced clip records.
type ClipStore interface {
	// Insert records a produced clip.
	Insert(ctx context.Context, c *ClipRecord) error
	// List returns clips, newest first. videoID filters when non-empty.
	List(ctx context.Context, videoID string) ([]ClipRecord, error)
	// DeleteByVideo removes clip rows for a video and returns their file paths.
	DeleteByVideo(ctx context.Context, videoID string) ([]string, error)
}

// ClipRepo provides methods for clip operations.
// It implements the ClipStore interface.
type ClipRepo struct {
	db *sql.DB
}

// NewClipRepo creates a new ClipRepo.
func NewClipRepo(db *sql.DB) *ClipRepo {
	return &ClipRepo{db: db}
}

// Insert records a produced clip.
func (r *ClipRepo) Insert(ctx context.Context, c *ClipRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO clips (clip_id, video_id, start_sec, end_sec, path) VALUES (?, ?, ?, ?, ?)",
		c.ClipID, c.VideoID, c.StartSec, c.EndSec, c.Path)
	if err != nil {
		return fmt.Errorf("failed to insert clip: %w", err)
	}
	return nil
}

// List returns clips, newest first. videoID filters when non-empty.
func (r *ClipRepo) List(ctx context.Context, videoID string) ([]ClipRecord, error) {
	query := "SELECT clip_id, video_id, start_sec, end_sec, path, created_at FROM clips"
	args := []any{}
	if videoID != "" {
		query += " WHERE video_id = ?"
		args = append(args, videoID)
	}
	query += " ORDER BY created_at DESC, clip_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clips: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []ClipRecord
	for rows.Next() {
		var c ClipRecord
		var createdAt string
		if err := rows.Scan(&c.ClipID, &c.VideoID, &c.StartSec, &c.EndSec, &c.Path, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan clip: %w", err)
		}
		c.CreatedAt = parseSQLiteTime(createdAt)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// DeleteByVideo removes clip rows for a video and returns their file paths
// so the caller can unlink the files.
func (r *ClipRepo) DeleteByVideo(ctx context.Context, videoID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT path FROM clips WHERE video_id = ?", videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to query clip paths: %w", err)
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan clip path: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	_ = rows.Close()

	if _, err := r.db.ExecContext(ctx, "DELETE FROM clips WHERE video_id = ?", videoID); err != nil {
		return nil, fmt.Errorf("failed to delete clips: %w", err)
	}
	return paths, nil
}
