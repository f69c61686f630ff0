package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_video_store.go -package=mocks clipfinder/internal/storage VideoStore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// VideoStore defines the interface for video metadata operations.
type VideoStore interface {
	// Create inserts a new video. Fails if the video_id already exists.
	Create(ctx context.Context, v *VideoRecord) error
	// Get returns a video by id. Returns ErrNotFound if not found.
	Get(ctx context.Context, videoID string) (*VideoRecord, error)
	// List returns videos ordered by created_at descending, with segment counts.
	// channel filters by channel_name when non-empty.
	List(ctx context.Context, channel string, limit, offset int) ([]VideoRecord, error)
	// KnownIDsAndPaths returns the set of known video ids and file paths, for idempotent scans.
	KnownIDsAndPaths(ctx context.Context) (map[string]struct{}, map[string]struct{}, error)
	// SetStageStatus updates one stage status column for a video.
	SetStageStatus(ctx context.Context, videoID string, stage Stage, status StageStatus) error
	// ResetStageStatuses sets all three stage statuses.
	// status_download stays done when the file is still present on disk.
	ResetStageStatuses(ctx context.Context, videoID string, keepDownload bool) error
	// FailInFlightStages marks any stage left in processing as failed (restart recovery).
	FailInFlightStages(ctx context.Context) (int64, error)
	// UpdateMeta updates non-empty metadata fields for a video.
	UpdateMeta(ctx context.Context, videoID string, patch VideoMetaPatch) error
	// SetFilePath records the downloaded media file location.
	SetFilePath(ctx context.Context, videoID, filePath string) error
	// Delete removes the video row. Segments cascade via foreign key.
	Delete(ctx context.Context, videoID string) error
	// ListChannels returns distinct channel names with video counts.
	ListChannels(ctx context.Context) ([]ChannelCount, error)
	// ListIDsByChannels resolves channel names to video ids, for search filters.
	ListIDsByChannels(ctx context.Context, channels []string) ([]string, error)
	// ListWithoutSegments returns videos that have no transcript segments yet.
	ListWithoutSegments(ctx context.Context) ([]VideoRecord, error)
}

// VideoMetaPatch holds optional metadata updates; nil fields are left unchanged.
type VideoMetaPatch struct {
	Title           *string
	ChannelName     *string
	SourceURL       *string
	DurationSeconds *int
	ThumbnailURL    *string
}

// VideoRepo provides methods for video operations.
// It implements the VideoStore interface.
type VideoRepo struct {
	db *sql.DB
}

// NewVideoRepo creates a new VideoRepo.
func NewVideoRepo(db *sql.DB) *VideoRepo {
	return &VideoRepo{db: db}
}

const videoColumns = `video_id, title, channel_name, source_url, duration_seconds,
	thumbnail_url, file_path, status_download, status_transcribe, status_index, created_at`

func scanVideo(scan func(dest ...any) error, v *VideoRecord) error {
	var createdAt string
	err := scan(
		&v.VideoID, &v.Title, &v.ChannelName, &v.SourceURL, &v.DurationSeconds,
		&v.ThumbnailURL, &v.FilePath, &v.StatusDownload, &v.StatusTranscribe,
		&v.StatusIndex, &createdAt,
	)
	if err != nil {
		return err
	}
	v.CreatedAt = parseSQLiteTime(createdAt)
	return nil
}

// parseSQLiteTime parses the DATETIME formats SQLite may emit.
func parseSQLiteTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Create inserts a new video. Fails if the video_id already exists.
func (r *VideoRepo) Create(ctx context.Context, v *VideoRecord) error {
	if v.StatusDownload == "" {
		v.StatusDownload = StatusPending
	}
	if v.StatusTranscribe == "" {
		v.StatusTranscribe = StatusPending
	}
	if v.StatusIndex == "" {
		v.StatusIndex = StatusPending
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO videos (video_id, title, channel_name, source_url, duration_seconds,
			thumbnail_url, file_path, status_download, status_transcribe, status_index)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.VideoID, v.Title, v.ChannelName, v.SourceURL, v.DurationSeconds,
		v.ThumbnailURL, v.FilePath, v.StatusDownload, v.StatusTranscribe, v.StatusIndex,
	)
	if err != nil {
		return fmt.Errorf("failed to insert video: %w", err)
	}
	return nil
}

// Get returns a video by id. Returns ErrNotFound if not found.
func (r *VideoRepo) Get(ctx context.Context, videoID string) (*VideoRecord, error) {
	var v VideoRecord
	row := r.db.QueryRowContext(ctx,
		"SELECT "+videoColumns+" FROM videos WHERE video_id = ?", videoID)
	err := scanVideo(row.Scan, &v)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query video: %w", err)
	}
	return &v, nil
}

// List returns videos ordered by created_at descending, with segment counts.
func (r *VideoRepo) List(ctx context.Context, channel string, limit, offset int) ([]VideoRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT v.video_id, v.title, v.channel_name, v.source_url, v.duration_seconds,
			v.thumbnail_url, v.file_path, v.status_download, v.status_transcribe, v.status_index,
			v.created_at, COALESCE(seg.cnt, 0)
		FROM videos v
		LEFT JOIN (SELECT video_id, COUNT(*) AS cnt FROM segments GROUP BY video_id) seg
			ON v.video_id = seg.video_id`
	args := []any{}
	if channel != "" {
		query += " WHERE v.channel_name = ?"
		args = append(args, channel)
	}
	query += " ORDER BY v.created_at DESC, v.video_id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []VideoRecord
	for rows.Next() {
		var v VideoRecord
		var createdAt string
		err := rows.Scan(
			&v.VideoID, &v.Title, &v.ChannelName, &v.SourceURL, &v.DurationSeconds,
			&v.ThumbnailURL, &v.FilePath, &v.StatusDownload, &v.StatusTranscribe,
			&v.StatusIndex, &createdAt, &v.SegmentCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		v.CreatedAt = parseSQLiteTime(createdAt)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// KnownIDsAndPaths returns the set of known video ids and file paths.
func (r *VideoRepo) KnownIDsAndPaths(ctx context.Context) (map[string]struct{}, map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT video_id, file_path FROM videos")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query known videos: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	ids := make(map[string]struct{})
	paths := make(map[string]struct{})
	for rows.Next() {
		var id, path string
		if err := rows.Scan(&id, &path); err != nil {
			return nil, nil, fmt.Errorf("failed to scan known video: %w", err)
		}
		ids[id] = struct{}{}
		if path != "" {
			paths[path] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, paths, nil
}

// SetStageStatus updates one stage status column for a video.
func (r *VideoRepo) SetStageStatus(ctx context.Context, videoID string, stage Stage, status StageStatus) error {
	col, err := stageColumn(stage)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE videos SET "+col+" = ? WHERE video_id = ?", status, videoID)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", col, err)
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

func stageColumn(stage Stage) (string, error) {
	switch stage {
	case StageDownload:
		return "status_download", nil
	case StageTranscribe:
		return "status_transcribe", nil
	case StageIndex:
		return "status_index", nil
	}
	return "", fmt.Errorf("unknown stage %q", stage)
}

// ResetStageStatuses sets all three stage statuses back to pending.
// When keepDownload is true the download stage stays done (local file present).
func (r *VideoRepo) ResetStageStatuses(ctx context.Context, videoID string, keepDownload bool) error {
	download := StatusPending
	if keepDownload {
		download = StatusDone
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE videos SET status_download = ?, status_transcribe = ?, status_index = ?
		 WHERE video_id = ?`,
		download, StatusPending, StatusPending, videoID)
	if err != nil {
		return fmt.Errorf("failed to reset stage statuses: %w", err)
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

// FailInFlightStages marks any stage left in processing as failed.
// Called once at startup before workers begin.
func (r *VideoRepo) FailInFlightStages(ctx context.Context) (int64, error) {
	var total int64
	for _, col := range []string{"status_download", "status_transcribe", "status_index"} {
		res, err := r.db.ExecContext(ctx,
			"UPDATE videos SET "+col+" = ? WHERE "+col+" = ?", StatusFailed, StatusProcessing)
		if err != nil {
			return total, fmt.Errorf("failed to fail in-flight %s: %w", col, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// UpdateMeta updates metadata fields for a video. Nil patch fields are skipped.
func (r *VideoRepo) UpdateMeta(ctx context.Context, videoID string, patch VideoMetaPatch) error {
	sets := []string{}
	args := []any{}
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.ChannelName != nil {
		sets = append(sets, "channel_name = ?")
		args = append(args, *patch.ChannelName)
	}
	if patch.SourceURL != nil {
		sets = append(sets, "source_url = ?")
		args = append(args, *patch.SourceURL)
	}
	if patch.DurationSeconds != nil {
		sets = append(sets, "duration_seconds = ?")
		args = append(args, *patch.DurationSeconds)
	}
	if patch.ThumbnailURL != nil {
		sets = append(sets, "thumbnail_url = ?")
		args = append(args, *patch.ThumbnailURL)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, videoID)

	query := "UPDATE videos SET "
	for i, s := range sets {
		if i > 0 {
			query += ", "
		}
		query += s
	}
	query += " WHERE video_id = ?"

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update video metadata: %w", err)
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

// SetFilePath records the downloaded media file location.
func (r *VideoRepo) SetFilePath(ctx context.Context, videoID, filePath string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE videos SET file_path = ? WHERE video_id = ?", filePath, videoID)
	if err != nil {
		return fmt.Errorf("failed to set file path: %w", err)
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

// Delete removes the video row. Segments cascade via foreign key.
func (r *VideoRepo) Delete(ctx context.Context, videoID string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM videos WHERE video_id = ?", videoID)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
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

// ListChannels returns distinct channel names with video counts.
func (r *VideoRepo) ListChannels(ctx context.Context) ([]ChannelCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT channel_name, COUNT(*) FROM videos
		 WHERE channel_name != ''
		 GROUP BY channel_name
		 ORDER BY COUNT(*) DESC, channel_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []ChannelCount
	for rows.Next() {
		var c ChannelCount
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// ListIDsByChannels resolves channel names to video ids.
// Returns an empty slice when no channels match (not an error).
func (r *VideoRepo) ListIDsByChannels(ctx context.Context, channels []string) ([]string, error) {
	if len(channels) == 0 {
		return nil, nil
	}
	placeholders := ""
	args := make([]any, 0, len(channels))
	for i, c := range channels {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, c)
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT video_id FROM videos WHERE channel_name IN ("+placeholders+") ORDER BY video_id",
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve channels: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan video id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// ListWithoutSegments returns videos that have no transcript segments yet.
func (r *VideoRepo) ListWithoutSegments(ctx context.Context) ([]VideoRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+videoColumns+` FROM videos v
		 WHERE NOT EXISTS (SELECT 1 FROM segments s WHERE s.video_id = v.video_id)
		 ORDER BY v.created_at, v.video_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed videos: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []VideoRecord
	for rows.Next() {
		var v VideoRecord
		if err := scanVideo(rows.Scan, &v); err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}
