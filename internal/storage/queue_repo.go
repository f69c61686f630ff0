package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_queue_store.go -package=mocks clipfinder/internal/storage QueueStore

import (
	"context"
	"database/sql"
	"fmt"
)

// QueueStore defines the interface for durable queue entry operations.
// All mutations go through the pipeline orchestrator.
type QueueStore interface {
	// Upsert inserts a queue entry or replaces the existing entry for the video.
	Upsert(ctx context.Context, e *QueueEntry) error
	// Get returns the entry for a video. Returns ErrNotFound if absent.
	Get(ctx context.Context, videoID string) (*QueueEntry, error)
	// GetActive returns the entry if it is in a non-terminal status, else ErrNotFound.
	GetActive(ctx context.Context, videoID string) (*QueueEntry, error)
	// List returns all entries ordered by creation time.
	List(ctx context.Context) ([]QueueEntry, error)
	// SetStatus transitions an entry's status and error message.
	SetStatus(ctx context.Context, videoID string, status QueueStatus, errMsg string) error
	// Delete removes an entry regardless of status. Callers enforce the
	// no-delete-while-active rule before calling.
	Delete(ctx context.Context, videoID string) error
	// ClearTerminal removes all done/error entries, returning the count.
	ClearTerminal(ctx context.Context) (int64, error)
	// FailInFlight marks all non-terminal entries as error with the given
	// message. Called once at startup to recover from a crash.
	FailInFlight(ctx context.Context, message string) (int64, error)
}

// QueueRepo provides methods for queue entry operations.
// It implements the QueueStore interface.
type QueueRepo struct {
	db *sql.DB
}

// NewQueueRepo creates a new QueueRepo.
func NewQueueRepo(db *sql.DB) *QueueRepo {
	return &QueueRepo{db: db}
}

// Upsert inserts a queue entry or replaces the existing entry for the video.
func (r *QueueRepo) Upsert(ctx context.Context, e *QueueEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO queue (video_id, stage, status, title, error)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(video_id) DO UPDATE SET
			stage = excluded.stage,
			status = excluded.status,
			title = excluded.title,
			error = excluded.error,
			created_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP`,
		e.VideoID, e.Stage, e.Status, e.Title, e.Error)
	if err != nil {
		return fmt.Errorf("failed to upsert queue entry: %w", err)
	}
	return nil
}

const queueColumns = "video_id, stage, status, title, error, created_at, updated_at"

func scanQueueEntry(scan func(dest ...any) error, e *QueueEntry) error {
	var createdAt, updatedAt string
	if err := scan(&e.VideoID, &e.Stage, &e.Status, &e.Title, &e.Error, &createdAt, &updatedAt); err != nil {
		return err
	}
	e.CreatedAt = parseSQLiteTime(createdAt)
	e.UpdatedAt = parseSQLiteTime(updatedAt)
	return nil
}

// Get returns the entry for a video. Returns ErrNotFound if absent.
func (r *QueueRepo) Get(ctx context.Context, videoID string) (*QueueEntry, error) {
	var e QueueEntry
	row := r.db.QueryRowContext(ctx,
		"SELECT "+queueColumns+" FROM queue WHERE video_id = ?", videoID)
	err := scanQueueEntry(row.Scan, &e)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query queue entry: %w", err)
	}
	return &e, nil
}

// GetActive returns the entry if it is in a non-terminal status, else ErrNotFound.
func (r *QueueRepo) GetActive(ctx context.Context, videoID string) (*QueueEntry, error) {
	var e QueueEntry
	row := r.db.QueryRowContext(ctx,
		"SELECT "+queueColumns+` FROM queue
		 WHERE video_id = ? AND status IN ('waiting','downloading','processing')`,
		videoID)
	err := scanQueueEntry(row.Scan, &e)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active queue entry: %w", err)
	}
	return &e, nil
}

// List returns all entries ordered by creation time.
func (r *QueueRepo) List(ctx context.Context) ([]QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+queueColumns+" FROM queue ORDER BY created_at, video_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []QueueEntry
	for rows.Next() {
		var e QueueEntry
		if err := scanQueueEntry(rows.Scan, &e); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// SetStatus transitions an entry's status and error message.
func (r *QueueRepo) SetStatus(ctx context.Context, videoID string, status QueueStatus, errMsg string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE queue SET status = ?, error = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE video_id = ?`,
		status, errMsg, videoID)
	if err != nil {
		return fmt.Errorf("failed to update queue status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an entry regardless of status.
func (r *QueueRepo) Delete(ctx context.Context, videoID string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM queue WHERE video_id = ?", videoID)
	if err != nil {
		return fmt.Errorf("failed to delete queue entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearTerminal removes all done/error entries, returning the count.
func (r *QueueRepo) ClearTerminal(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM queue WHERE status IN ('done','error')")
	if err != nil {
		return 0, fmt.Errorf("failed to clear terminal entries: %w", err)
	}
	return res.RowsAffected()
}

// FailInFlight marks all non-terminal entries as error with the given message.
func (r *QueueRepo) FailInFlight(ctx context.Context, message string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE queue SET status = ?, error = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE status IN ('waiting','downloading','processing')`,
		QueueError, message)
	if err != nil {
		return 0, fmt.Errorf("failed to fail in-flight entries: %w", err)
	}
	return res.RowsAffected()
}
