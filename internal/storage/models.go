package storage

import "time"

// Stage identifies one step of the per-video pipeline.
type Stage string

const (
	StageDownload   Stage = "download"
	StageTranscribe Stage = "transcribe"
	StageIndex      Stage = "index"
)

// Valid reports whether s is a known pipeline stage.
func (s Stage) Valid() bool {
	switch s {
	case StageDownload, StageTranscribe, StageIndex:
		return true
	}
	return false
}

// StageStatus is the closed status enum for a video's per-stage progress.
type StageStatus string

const (
	StatusPending    StageStatus = "pending"
	StatusProcessing StageStatus = "processing"
	StatusDone       StageStatus = "done"
	StatusFailed     StageStatus = "failed"
)

// QueueStatus is the closed status enum for a queue entry.
type QueueStatus string

const (
	QueueWaiting     QueueStatus = "waiting"
	QueueDownloading QueueStatus = "downloading"
	QueueProcessing  QueueStatus = "processing"
	QueueDone        QueueStatus = "done"
	QueueError       QueueStatus = "error"
)

// Active reports whether the entry still occupies the video's single job slot.
func (s QueueStatus) Active() bool {
	switch s {
	case QueueWaiting, QueueDownloading, QueueProcessing:
		return true
	}
	return false
}

// VideoRecord represents one media asset and its per-stage statuses.
type VideoRecord struct {
	VideoID         string
	Title           string
	ChannelName     string
	SourceURL       string
	DurationSeconds int
	ThumbnailURL    string
	FilePath        string
	StatusDownload  StageStatus
	StatusTranscribe StageStatus
	StatusIndex     StageStatus
	CreatedAt       time.Time
	SegmentCount    int // populated by List queries
}

// SegmentRecord is one timed unit of transcribed speech.
type SegmentRecord struct {
	SegmentID string
	VideoID   string
	StartSec  float64
	EndSec    float64
	Text      string
	WordsJSON string // optional sub-segment word timings, JSON-encoded
}

// QueueEntry is one tracked unit of pipeline work, keyed by video id.
// A re-enqueue replaces a terminal entry for the same video.
type QueueEntry struct {
	VideoID   string
	Stage     Stage
	Status    QueueStatus
	Title     string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LogEntry is an append-only diagnostic record tied to a video.
type LogEntry struct {
	ID        int64
	VideoID   string
	Level     string
	Message   string
	CreatedAt time.Time
}

// ClipRecord is one produced clip file.
type ClipRecord struct {
	ClipID    string
	VideoID   string
	StartSec  float64
	EndSec    float64
	Path      string
	CreatedAt time.Time
}

// ChannelCount is a channel facet row for filter UIs.
type ChannelCount struct {
	Name  string
	Count int
}

// FTSResult is one BM25 full-text match from the segments_fts table.
type FTSResult struct {
	SegmentID string
	VideoID   string
	StartSec  float64
	EndSec    float64
	Text      string
	Rank      float64 // bm25 rank, lower is better
}
