package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// LogStore defines the interface for append-only processing logs.
type LogStore interface {
	// Append records a diagnostic message for a video.
	Append(ctx context.Context, videoID, level, message string) error
	// ListByVideo returns log entries for a video, oldest first.
	ListByVideo(ctx context.Context, videoID string, limit int) ([]LogEntry, error)
	// DeleteByVideo removes all log entries for a video.
	DeleteByVideo(ctx context.Context, videoID string) error
}

// LogRepo provides methods for processing log operations.
// It implements the LogStore interface.
type LogRepo struct {
	db *sql.DB
}

// NewLogRepo creates a new LogRepo.
func NewLogRepo(db *sql.DB) *LogRepo {
	return &LogRepo{db: db}
}

// Append records a diagnostic message for a video.
func (r *LogRepo) Append(ctx context.Context, videoID, level, message string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO processing_logs (video_id, level, message) VALUES (?, ?, ?)",
		videoID, level, message)
	if err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

// ListByVideo returns log entries for a video, oldest first.
func (r *LogRepo) ListByVideo(ctx context.Context, videoID string, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, video_id, level, message, created_at
		 FROM processing_logs WHERE video_id = ? ORDER BY id LIMIT ?`,
		videoID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.VideoID, &e.Level, &e.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		e.CreatedAt = parseSQLiteTime(createdAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// DeleteByVideo removes all log entries for a video.
func (r *LogRepo) DeleteByVideo(ctx context.Context, videoID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM processing_logs WHERE video_id = ?", videoID)
	if err != nil {
		return fmt.Errorf("failed to delete logs: %w", err)
	}
	return nil
}
