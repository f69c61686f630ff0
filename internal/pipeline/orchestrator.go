package pipeline

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"clipfinder/internal/contextutil"
	"clipfinder/internal/download"
	"clipfinder/internal/service"
	"clipfinder/internal/storage"
)

// Downloader fetches videos and their metadata.
type Downloader interface {
	FetchMetadata(ctx context.Context, url string) (*download.Metadata, error)
	Download(ctx context.Context, url, quality string) (*download.Result, error)
}

// Transcriber produces transcript segments for a downloaded video file.
type Transcriber interface {
	TranscribeVideo(ctx context.Context, videoID, filePath string) ([]storage.SegmentRecord, error)
}

// Indexer writes and removes a video's searchable index state.
type Indexer interface {
	IndexVideo(ctx context.Context, videoID string) (int, error)
	RemoveVideo(ctx context.Context, videoID string) error
}

// Prober reads media durations. Used during library scans.
type Prober interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Config holds orchestrator tuning knobs.
type Config struct {
	VideoDir   string
	Workers    int // pipeline workers for transcribe/index stages
	QueueDepth int // buffered jobs per channel
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Queue       storage.QueueStore
	Videos      storage.VideoStore
	Segments    storage.SegmentStore
	Logs        storage.LogStore
	Clips       storage.ClipStore
	Downloader  Downloader
	Transcriber Transcriber
	Indexer     Indexer
	Prober      Prober
	Logger      *slog.Logger
}

// job is one unit of queued work. Chained stages reuse the video's queue
// slot; the chain flag itself is never persisted.
type job struct {
	key     string // queue key: video id, or derived key for downloads
	stage   storage.Stage
	videoID string
	url     string
	quality string
	chain   bool
}

// Orchestrator owns the durable work queue and the stage workers.
// Downloads drain on a dedicated goroutine so a slow fetch never starves
// transcription; transcribe and index share a worker pool.
type Orchestrator struct {
	cfg  Config
	deps Deps

	mu     sync.Mutex
	closed bool

	downloadJobs chan job
	pipelineJobs chan job

	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

// New creates an Orchestrator. Call Start before enqueueing work.
func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 64
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:          cfg,
		deps:         deps,
		downloadJobs: make(chan job, cfg.QueueDepth),
		pipelineJobs: make(chan job, cfg.QueueDepth),
		logger:       logger,
	}
}

// DownloadKey derives the queue key for a download job. The video id is
// unknown until the download finishes, so the URL hash stands in for it.
func DownloadKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return "dl-" + hex.EncodeToString(sum[:])[:12]
}

// Start recovers interrupted work from a previous run and launches the
// stage workers.
func (o *Orchestrator) Start(ctx context.Context) error {
	failed, err := o.deps.Queue.FailInFlight(ctx, "interrupted by restart")
	if err != nil {
		return fmt.Errorf("failed to recover queue: %w", err)
	}
	stages, err := o.deps.Videos.FailInFlightStages(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover stage statuses: %w", err)
	}
	if failed > 0 || stages > 0 {
		o.logger.Info("recovered interrupted work", "queue_entries", failed, "stage_statuses", stages)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel

	o.wg.Add(1)
	go o.drainDownloads(runCtx)
	for i := 0; i < o.cfg.Workers; i++ {
		o.wg.Add(1)
		go o.drainPipeline(runCtx)
	}
	o.logger.Info("pipeline started", "workers", o.cfg.Workers, "queue_depth", o.cfg.QueueDepth)
	return nil
}

// Close stops accepting work, drains queued jobs, and waits for the
// workers to finish.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.downloadJobs)
	close(o.pipelineJobs)
	o.mu.Unlock()

	o.wg.Wait()
	if o.cancel != nil {
		o.cancel()
	}
}

// EnqueueDownload admits a download job for a URL. Returns the queue key
// the job is tracked under. A second enqueue for the same URL while the
// first is active returns ErrDuplicateJob.
func (o *Orchestrator) EnqueueDownload(ctx context.Context, url, quality string, chain bool) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", &service.ValidationError{Field: "url", Message: "must not be empty"}
	}
	if quality == "" {
		quality = download.Quality720p
	}
	if !download.ValidQuality(quality) {
		return "", &service.ValidationError{Field: "quality", Message: "must be 720p or best"}
	}

	key := DownloadKey(url)
	entry := &storage.QueueEntry{
		VideoID: key,
		Stage:   storage.StageDownload,
		Status:  storage.QueueWaiting,
		Title:   url,
	}
	j := job{key: key, stage: storage.StageDownload, url: url, quality: quality, chain: chain}
	if err := o.admit(ctx, entry, o.downloadJobs, j); err != nil {
		return "", err
	}
	return key, nil
}

// EnqueueTranscribe admits a transcribe job for a downloaded video.
// With chain set the index stage runs automatically on success.
func (o *Orchestrator) EnqueueTranscribe(ctx context.Context, videoID string, chain bool) error {
	video, err := o.getVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if video.StatusDownload != storage.StatusDone {
		return &service.ValidationError{Field: "video_id", Message: "download stage has not completed"}
	}
	if video.FilePath == "" {
		return &service.ValidationError{Field: "video_id", Message: "video has no downloaded file"}
	}

	entry := &storage.QueueEntry{
		VideoID: videoID,
		Stage:   storage.StageTranscribe,
		Status:  storage.QueueWaiting,
		Title:   video.Title,
	}
	j := job{key: videoID, stage: storage.StageTranscribe, videoID: videoID, chain: chain}
	return o.admit(ctx, entry, o.pipelineJobs, j)
}

// EnqueueIndex admits an index job for a transcribed video.
func (o *Orchestrator) EnqueueIndex(ctx context.Context, videoID string) error {
	video, err := o.getVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if video.StatusTranscribe != storage.StatusDone {
		return &service.ValidationError{Field: "video_id", Message: "transcribe stage has not completed"}
	}

	entry := &storage.QueueEntry{
		VideoID: videoID,
		Stage:   storage.StageIndex,
		Status:  storage.QueueWaiting,
		Title:   video.Title,
	}
	j := job{key: videoID, stage: storage.StageIndex, videoID: videoID}
	return o.admit(ctx, entry, o.pipelineJobs, j)
}

// EnqueuePipeline runs transcribe then index for a video.
func (o *Orchestrator) EnqueuePipeline(ctx context.Context, videoID string) error {
	return o.EnqueueTranscribe(ctx, videoID, true)
}

// Reprocess wipes a video's derived state and runs the pipeline again.
// Prior segments and vectors are removed first. When the downloaded file
// is still on disk the run restarts from transcribe; otherwise the video
// is re-downloaded from its source URL.
func (o *Orchestrator) Reprocess(ctx context.Context, videoID string) error {
	video, err := o.getVideo(ctx, videoID)
	if err != nil {
		return err
	}
	o.mu.Lock()
	if _, err := o.deps.Queue.GetActive(ctx, videoID); err == nil {
		o.mu.Unlock()
		return service.ErrJobActive
	} else if !errors.Is(err, storage.ErrNotFound) {
		o.mu.Unlock()
		return err
	}
	o.mu.Unlock()

	logger := contextutil.LoggerFromContext(ctx)
	if err := o.deps.Indexer.RemoveVideo(ctx, videoID); err != nil {
		logger.WarnContext(ctx, "failed to remove vectors", "video_id", videoID, "error", err)
	}
	if err := o.deps.Segments.DeleteByVideo(ctx, videoID); err != nil {
		return fmt.Errorf("failed to delete segments: %w", err)
	}

	fileOnDisk := false
	if video.FilePath != "" {
		if _, err := os.Stat(video.FilePath); err == nil {
			fileOnDisk = true
		}
	}

	if fileOnDisk {
		if err := o.deps.Videos.ResetStageStatuses(ctx, videoID, true); err != nil {
			return fmt.Errorf("failed to reset stage statuses: %w", err)
		}
		return o.EnqueueTranscribe(ctx, videoID, true)
	}

	if video.SourceURL == "" {
		return &service.ValidationError{Field: "video_id", Message: "file is missing and the video has no source url"}
	}
	if err := o.deps.Videos.ResetStageStatuses(ctx, videoID, false); err != nil {
		return fmt.Errorf("failed to reset stage statuses: %w", err)
	}
	// The old path points at a file that no longer exists; the download
	// stage writes the fresh one.
	if err := o.deps.Videos.SetFilePath(ctx, videoID, ""); err != nil {
		return fmt.Errorf("failed to clear stale file path: %w", err)
	}
	_, err = o.EnqueueDownload(ctx, video.SourceURL, "", true)
	return err
}

// Dequeue removes a terminal queue entry. Active entries are protected;
// work in flight cannot be cancelled.
func (o *Orchestrator) Dequeue(ctx context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.deps.Queue.GetActive(ctx, key); err == nil {
		return service.ErrJobActive
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if err := o.deps.Queue.Delete(ctx, key); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return service.ErrNotFound
		}
		return err
	}
	return nil
}

// ClearFinished removes all terminal queue entries.
func (o *Orchestrator) ClearFinished(ctx context.Context) (int64, error) {
	return o.deps.Queue.ClearTerminal(ctx)
}

// QueueEntries lists the queue, oldest first.
func (o *Orchestrator) QueueEntries(ctx context.Context) ([]storage.QueueEntry, error) {
	return o.deps.Queue.List(ctx)
}

// DeleteVideo removes a video and all derived state: vectors, segments,
// full-text rows, clips, logs, and the media file. Videos with active
// jobs are protected.
func (o *Orchestrator) DeleteVideo(ctx context.Context, videoID string) error {
	o.mu.Lock()
	if _, err := o.deps.Queue.GetActive(ctx, videoID); err == nil {
		o.mu.Unlock()
		return service.ErrJobActive
	} else if !errors.Is(err, storage.ErrNotFound) {
		o.mu.Unlock()
		return err
	}
	o.mu.Unlock()

	video, err := o.getVideo(ctx, videoID)
	if err != nil {
		return err
	}

	logger := contextutil.LoggerFromContext(ctx)
	if err := o.deps.Indexer.RemoveVideo(ctx, videoID); err != nil {
		logger.WarnContext(ctx, "failed to remove vectors", "video_id", videoID, "error", err)
	}
	if err := o.deps.Segments.DeleteByVideo(ctx, videoID); err != nil {
		return fmt.Errorf("failed to delete segments: %w", err)
	}
	paths, err := o.deps.Clips.DeleteByVideo(ctx, videoID)
	if err != nil {
		return fmt.Errorf("failed to delete clips: %w", err)
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logger.WarnContext(ctx, "failed to remove clip file", "path", p, "error", err)
		}
	}
	if err := o.deps.Logs.DeleteByVideo(ctx, videoID); err != nil {
		logger.WarnContext(ctx, "failed to delete logs", "video_id", videoID, "error", err)
	}
	if video.FilePath != "" {
		if err := os.Remove(video.FilePath); err != nil && !os.IsNotExist(err) {
			logger.WarnContext(ctx, "failed to remove video file", "path", video.FilePath, "error", err)
		}
	}
	if err := o.deps.Videos.Delete(ctx, videoID); err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	if err := o.deps.Queue.Delete(ctx, videoID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to delete queue entry: %w", err)
	}

	logger.InfoContext(ctx, "deleted video", "video_id", videoID)
	return nil
}

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".webm": true,
	".mov":  true,
	".avi":  true,
}

// AddLocalFile registers a media file that already exists on disk. Files
// outside the library directory are copied in, the download stage is
// marked done, and a transcription run is queued.
func (o *Orchestrator) AddLocalFile(ctx context.Context, path, title, channel string) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	path = strings.TrimSpace(path)
	if path == "" {
		return "", &service.ValidationError{Field: "path", Message: "must not be empty"}
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("source file %s: %w", path, service.ErrNotFound)
	}
	if info.IsDir() {
		return "", &service.ValidationError{Field: "path", Message: "must be a file"}
	}
	if !videoExtensions[strings.ToLower(filepath.Ext(path))] {
		return "", &service.ValidationError{Field: "path", Message: "unsupported media type"}
	}

	videoID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if _, err := o.deps.Videos.Get(ctx, videoID); err == nil {
		return "", fmt.Errorf("video %s already registered: %w", videoID, service.ErrDuplicateJob)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	dest := filepath.Join(o.cfg.VideoDir, filepath.Base(path))
	srcAbs, _ := filepath.Abs(path)
	dstAbs, _ := filepath.Abs(dest)
	if srcAbs != dstAbs {
		if err := copyFile(path, dest); err != nil {
			return "", fmt.Errorf("failed to copy file into library: %w", err)
		}
	}

	if title == "" {
		title = videoID
	}
	rec := &storage.VideoRecord{
		VideoID:        videoID,
		Title:          title,
		ChannelName:    channel,
		FilePath:       dest,
		StatusDownload: storage.StatusDone,
	}
	if o.deps.Prober != nil {
		if d, err := o.deps.Prober.ProbeDuration(ctx, dest); err == nil {
			rec.DurationSeconds = int(d)
		}
	}
	if err := o.deps.Videos.Create(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to register video: %w", err)
	}

	if err := o.EnqueueTranscribe(ctx, videoID, true); err != nil && !errors.Is(err, service.ErrDuplicateJob) {
		logger.WarnContext(ctx, "failed to enqueue imported file", "video_id", videoID, "error", err)
	}
	logger.InfoContext(ctx, "local file registered", "video_id", videoID, "path", dest)
	return videoID, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}

// Scan registers video files already present in the library directory.
// Returns the number of new videos added.
func (o *Orchestrator) Scan(ctx context.Context) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	ids, paths, err := o.deps.Videos.KnownIDsAndPaths(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load known videos: %w", err)
	}

	entries, err := os.ReadDir(o.cfg.VideoDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read video dir: %w", err)
	}

	added := 0
	for _, e := range entries {
		if e.IsDir() || !videoExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		full := filepath.Join(o.cfg.VideoDir, e.Name())
		if _, ok := paths[full]; ok {
			continue
		}
		id := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if _, ok := ids[id]; ok {
			continue
		}

		rec := &storage.VideoRecord{
			VideoID:        id,
			Title:          id,
			FilePath:       full,
			StatusDownload: storage.StatusDone,
		}
		if o.deps.Prober != nil {
			if d, err := o.deps.Prober.ProbeDuration(ctx, full); err == nil {
				rec.DurationSeconds = int(d)
			}
		}
		if err := o.deps.Videos.Create(ctx, rec); err != nil {
			logger.WarnContext(ctx, "failed to register scanned file", "path", full, "error", err)
			continue
		}
		added++
	}

	logger.InfoContext(ctx, "library scan complete", "added", added)
	return added, nil
}

// ProcessPending enqueues the pipeline for every video that has a file
// but no transcript yet. Videos with active jobs are skipped.
func (o *Orchestrator) ProcessPending(ctx context.Context) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	videos, err := o.deps.Videos.ListWithoutSegments(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending videos: %w", err)
	}

	queued := 0
	for _, v := range videos {
		if v.FilePath == "" {
			continue
		}
		err := o.EnqueueTranscribe(ctx, v.VideoID, true)
		if errors.Is(err, service.ErrDuplicateJob) {
			continue
		}
		if err != nil {
			logger.WarnContext(ctx, "failed to enqueue pending video", "video_id", v.VideoID, "error", err)
			continue
		}
		queued++
	}
	return queued, nil
}

// admit registers a job under the single-flight rule and hands it to a
// worker channel. Exactly one active entry may exist per key.
func (o *Orchestrator) admit(ctx context.Context, entry *storage.QueueEntry, ch chan job, j job) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("pipeline is shut down")
	}
	if _, err := o.deps.Queue.GetActive(ctx, entry.VideoID); err == nil {
		return service.ErrDuplicateJob
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if err := o.deps.Queue.Upsert(ctx, entry); err != nil {
		return err
	}
	select {
	case ch <- j:
		return nil
	default:
		_ = o.deps.Queue.SetStatus(ctx, entry.VideoID, storage.QueueError, "queue full")
		return fmt.Errorf("queue full, try again later")
	}
}

// chainNext advances an in-flight job to its next stage. The caller owns
// the video's queue slot, so no admission check happens here.
func (o *Orchestrator) chainNext(ctx context.Context, videoID, title string, stage storage.Stage, chain bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	entry := &storage.QueueEntry{
		VideoID: videoID,
		Stage:   stage,
		Status:  storage.QueueWaiting,
		Title:   title,
	}
	if err := o.deps.Queue.Upsert(ctx, entry); err != nil {
		o.logger.Error("failed to chain stage", "video_id", videoID, "stage", stage, "error", err)
		return
	}
	select {
	case o.pipelineJobs <- job{key: videoID, stage: stage, videoID: videoID, chain: chain}:
	default:
		_ = o.deps.Queue.SetStatus(ctx, videoID, storage.QueueError, "queue full")
	}
}

func (o *Orchestrator) drainDownloads(ctx context.Context) {
	defer o.wg.Done()
	for j := range o.downloadJobs {
		o.runDownload(ctx, j)
	}
}

func (o *Orchestrator) drainPipeline(ctx context.Context) {
	defer o.wg.Done()
	for j := range o.pipelineJobs {
		switch j.stage {
		case storage.StageTranscribe:
			o.runTranscribe(ctx, j)
		case storage.StageIndex:
			o.runIndex(ctx, j)
		default:
			o.logger.Error("unknown stage in pipeline queue", "stage", j.stage, "key", j.key)
		}
	}
}

func (o *Orchestrator) runDownload(ctx context.Context, j job) {
	logger := o.logger.With("job", j.key, "url", j.url)
	ctx = contextutil.WithLogger(ctx, logger)

	_ = o.deps.Queue.SetStatus(ctx, j.key, storage.QueueDownloading, "")

	meta, err := o.deps.Downloader.FetchMetadata(ctx, j.url)
	if err != nil {
		logger.WarnContext(ctx, "metadata fetch failed, continuing", "error", err)
		meta = nil
	}

	res, err := o.deps.Downloader.Download(ctx, j.url, j.quality)
	if err != nil {
		stageErr := service.NewStageError(service.FetchError, err)
		_ = o.deps.Queue.SetStatus(ctx, j.key, storage.QueueError, stageErr.Error())
		logger.ErrorContext(ctx, "download failed", "error", err)
		return
	}

	videoID := res.VideoID
	title := res.Title
	existing, err := o.deps.Videos.Get(ctx, videoID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		rec := &storage.VideoRecord{
			VideoID:        videoID,
			Title:          title,
			SourceURL:      j.url,
			FilePath:       res.Path,
			StatusDownload: storage.StatusDone,
		}
		if meta != nil {
			if meta.Title != "" {
				rec.Title = meta.Title
				title = meta.Title
			}
			rec.ChannelName = meta.ChannelName
			rec.DurationSeconds = meta.DurationSeconds
			rec.ThumbnailURL = meta.ThumbnailURL
		}
		if err := o.deps.Videos.Create(ctx, rec); err != nil {
			_ = o.deps.Queue.SetStatus(ctx, j.key, storage.QueueError, "failed to register video: "+err.Error())
			logger.ErrorContext(ctx, "failed to register downloaded video", "error", err)
			return
		}
	case err == nil:
		title = existing.Title
		_ = o.deps.Videos.SetFilePath(ctx, videoID, res.Path)
		_ = o.deps.Videos.SetStageStatus(ctx, videoID, storage.StageDownload, storage.StatusDone)
	default:
		_ = o.deps.Queue.SetStatus(ctx, j.key, storage.QueueError, err.Error())
		return
	}

	_ = o.deps.Logs.Append(ctx, videoID, "info", "download complete: "+res.Path)
	_ = o.deps.Queue.SetStatus(ctx, j.key, storage.QueueDone, "")
	logger.InfoContext(ctx, "download complete", "video_id", videoID, "path", res.Path)

	if j.chain {
		// The transcribe job runs under the real video id, a different
		// queue key, so it goes through normal admission.
		err := o.EnqueueTranscribe(ctx, videoID, true)
		if err != nil && !errors.Is(err, service.ErrDuplicateJob) {
			logger.ErrorContext(ctx, "failed to chain transcribe", "video_id", videoID, "error", err)
		}
	}
}

func (o *Orchestrator) runTranscribe(ctx context.Context, j job) {
	logger := o.logger.With("video_id", j.videoID, "stage", "transcribe")
	ctx = contextutil.WithLogger(ctx, logger)

	_ = o.deps.Queue.SetStatus(ctx, j.key, storage.QueueProcessing, "")
	_ = o.deps.Videos.SetStageStatus(ctx, j.videoID, storage.StageTranscribe, storage.StatusProcessing)

	video, err := o.deps.Videos.Get(ctx, j.videoID)
	if err != nil {
		o.failStage(ctx, j, storage.StageTranscribe, err)
		return
	}

	segments, err := o.deps.Transcriber.TranscribeVideo(ctx, j.videoID, video.FilePath)
	if err != nil {
		o.failStage(ctx, j, storage.StageTranscribe, err)
		return
	}
	if err := o.deps.Segments.ReplaceForVideo(ctx, j.videoID, segments); err != nil {
		o.failStage(ctx, j, storage.StageTranscribe, err)
		return
	}

	_ = o.deps.Videos.SetStageStatus(ctx, j.videoID, storage.StageTranscribe, storage.StatusDone)
	_ = o.deps.Logs.Append(ctx, j.videoID, "info", fmt.Sprintf("transcribed %d segments", len(segments)))
	logger.InfoContext(ctx, "transcribe complete", "segments", len(segments))

	if j.chain {
		o.chainNext(ctx, j.videoID, video.Title, storage.StageIndex, false)
	} else {
		_ = o.deps.Queue.SetStatus(ctx, j.key, storage.QueueDone, "")
	}
}

func (o *Orchestrator) runIndex(ctx context.Context, j job) {
	logger := o.logger.With("video_id", j.videoID, "stage", "index")
	ctx = contextutil.WithLogger(ctx, logger)

	_ = o.deps.Queue.SetStatus(ctx, j.key, storage.QueueProcessing, "")
	_ = o.deps.Videos.SetStageStatus(ctx, j.videoID, storage.StageIndex, storage.StatusProcessing)

	indexed, err := o.deps.Indexer.IndexVideo(ctx, j.videoID)
	if err != nil {
		o.failStage(ctx, j, storage.StageIndex, err)
		return
	}

	_ = o.deps.Videos.SetStageStatus(ctx, j.videoID, storage.StageIndex, storage.StatusDone)
	_ = o.deps.Logs.Append(ctx, j.videoID, "info", fmt.Sprintf("indexed %d segments", indexed))
	_ = o.deps.Queue.SetStatus(ctx, j.key, storage.QueueDone, "")
	logger.InfoContext(ctx, "index complete", "segments", indexed)
}

func (o *Orchestrator) failStage(ctx context.Context, j job, stage storage.Stage, err error) {
	msg := err.Error()
	_ = o.deps.Videos.SetStageStatus(ctx, j.videoID, stage, storage.StatusFailed)
	_ = o.deps.Queue.SetStatus(ctx, j.key, storage.QueueError, msg)
	_ = o.deps.Logs.Append(ctx, j.videoID, "error", msg)
	o.logger.Error("stage failed", "video_id", j.videoID, "stage", stage, "error", err)
}

// getVideo loads a video and maps missing rows to the service error.
func (o *Orchestrator) getVideo(ctx context.Context, videoID string) (*storage.VideoRecord, error) {
	video, err := o.deps.Videos.Get(ctx, videoID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, service.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return video, nil
}
