package storage

import (
	"context"
	"errors"
	"testing"
)

func TestVideoRepo_CreateAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewVideoRepo(db)
	ctx := context.Background()

	v := &VideoRecord{
		VideoID:     "vid-1",
		Title:       "Budget planning session",
		ChannelName: "channelA",
		SourceURL:   "https://youtube.com/watch?v=abc",
		FilePath:    "/data/videos/vid-1.mp4",
	}
	if err := repo.Create(ctx, v); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.Get(ctx, "vid-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != v.Title || got.ChannelName != v.ChannelName {
		t.Errorf("Get() = %+v, want title/channel from %+v", got, v)
	}
	if got.StatusDownload != StatusPending || got.StatusTranscribe != StatusPending || got.StatusIndex != StatusPending {
		t.Errorf("new video statuses = %v/%v/%v, want all pending",
			got.StatusDownload, got.StatusTranscribe, got.StatusIndex)
	}

	// Duplicate video_id must be rejected
	if err := repo.Create(ctx, v); err == nil {
		t.Error("Create() with duplicate video_id expected error, got nil")
	}
}

func TestVideoRepo_GetNotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewVideoRepo(db)

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestVideoRepo_SetStageStatus(t *testing.T) {
	db := openTestDB(t)
	repo := NewVideoRepo(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &VideoRecord{VideoID: "v1", Title: "T"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.SetStageStatus(ctx, "v1", StageDownload, StatusDone); err != nil {
		t.Fatalf("SetStageStatus(download) error = %v", err)
	}
	if err := repo.SetStageStatus(ctx, "v1", StageTranscribe, StatusProcessing); err != nil {
		t.Fatalf("SetStageStatus(transcribe) error = %v", err)
	}

	got, err := repo.Get(ctx, "v1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.StatusDownload != StatusDone {
		t.Errorf("StatusDownload = %v, want done", got.StatusDownload)
	}
	if got.StatusTranscribe != StatusProcessing {
		t.Errorf("StatusTranscribe = %v, want processing", got.StatusTranscribe)
	}

	if err := repo.SetStageStatus(ctx, "missing", StageDownload, StatusDone); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStageStatus(missing) error = %v, want ErrNotFound", err)
	}
	if err := repo.SetStageStatus(ctx, "v1", Stage("bogus"), StatusDone); err == nil {
		t.Error("SetStageStatus with unknown stage expected error")
	}
}

func TestVideoRepo_ResetStageStatuses(t *testing.T) {
	db := openTestDB(t)
	repo := NewVideoRepo(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &VideoRecord{
		VideoID:          "v1",
		Title:            "T",
		StatusDownload:   StatusDone,
		StatusTranscribe: StatusDone,
		StatusIndex:      StatusFailed,
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.ResetStageStatuses(ctx, "v1", true); err != nil {
		t.Fatalf("ResetStageStatuses(keepDownload) error = %v", err)
	}
	got, _ := repo.Get(ctx, "v1")
	if got.StatusDownload != StatusDone {
		t.Errorf("StatusDownload = %v, want done (file kept)", got.StatusDownload)
	}
	if got.StatusTranscribe != StatusPending || got.StatusIndex != StatusPending {
		t.Errorf("transcribe/index = %v/%v, want pending/pending", got.StatusTranscribe, got.StatusIndex)
	}

	if err := repo.ResetStageStatuses(ctx, "v1", false); err != nil {
		t.Fatalf("ResetStageStatuses() error = %v", err)
	}
	got, _ = repo.Get(ctx, "v1")
	if got.StatusDownload != StatusPending {
		t.Errorf("StatusDownload = %v, want pending", got.StatusDownload)
	}
}

func TestVideoRepo_FailInFlightStages(t *testing.T) {
	db := openTestDB(t)
	repo := NewVideoRepo(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &VideoRecord{
		VideoID:          "v1",
		Title:            "T",
		StatusDownload:   StatusDone,
		StatusTranscribe: StatusProcessing,
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, &VideoRecord{VideoID: "v2", Title: "T2"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	n, err := repo.FailInFlightStages(ctx)
	if err != nil {
		t.Fatalf("FailInFlightStages() error = %v", err)
	}
	if n != 1 {
		t.Errorf("FailInFlightStages() = %d rows, want 1", n)
	}

	got, _ := repo.Get(ctx, "v1")
	if got.StatusTranscribe != StatusFailed {
		t.Errorf("StatusTranscribe = %v, want failed", got.StatusTranscribe)
	}
	if got.StatusDownload != StatusDone {
		t.Errorf("StatusDownload = %v, want done untouched", got.StatusDownload)
	}
}

func TestVideoRepo_ListAndChannels(t *testing.T) {
	db := openTestDB(t)
	repo := NewVideoRepo(db)
	segRepo := NewSegmentRepo(db)
	ctx := context.Background()

	for _, v := range []*VideoRecord{
		{VideoID: "a", Title: "A", ChannelName: "channelA"},
		{VideoID: "b", Title: "B", ChannelName: "channelA"},
		{VideoID: "c", Title: "C", ChannelName: "channelB"},
	} {
		if err := repo.Create(ctx, v); err != nil {
			t.Fatalf("Create(%s) error = %v", v.VideoID, err)
		}
	}
	if err := segRepo.ReplaceForVideo(ctx, "a", []SegmentRecord{
		{SegmentID: "a-0", VideoID: "a", StartSec: 0, EndSec: 5, Text: "hello"},
		{SegmentID: "a-1", VideoID: "a", StartSec: 5, EndSec: 9, Text: "world"},
	}); err != nil {
		t.Fatalf("ReplaceForVideo() error = %v", err)
	}

	all, err := repo.List(ctx, "", 100, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List() returned %d videos, want 3", len(all))
	}
	for _, v := range all {
		if v.VideoID == "a" && v.SegmentCount != 2 {
			t.Errorf("video a SegmentCount = %d, want 2", v.SegmentCount)
		}
	}

	chA, err := repo.List(ctx, "channelA", 100, 0)
	if err != nil {
		t.Fatalf("List(channelA) error = %v", err)
	}
	if len(chA) != 2 {
		t.Errorf("List(channelA) returned %d videos, want 2", len(chA))
	}

	channels, err := repo.ListChannels(ctx)
	if err != nil {
		t.Fatalf("ListChannels() error = %v", err)
	}
	if len(channels) != 2 || channels[0].Name != "channelA" || channels[0].Count != 2 {
		t.Errorf("ListChannels() = %+v, want channelA:2 first", channels)
	}

	ids, err := repo.ListIDsByChannels(ctx, []string{"channelB"})
	if err != nil {
		t.Fatalf("ListIDsByChannels() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != "c" {
		t.Errorf("ListIDsByChannels(channelB) = %v, want [c]", ids)
	}
}

func TestVideoRepo_KnownIDsAndPaths(t *testing.T) {
	db := openTestDB(t)
	repo := NewVideoRepo(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &VideoRecord{VideoID: "v1", Title: "T", FilePath: "/data/v1.mp4"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, &VideoRecord{VideoID: "v2", Title: "T2"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ids, paths, err := repo.KnownIDsAndPaths(ctx)
	if err != nil {
		t.Fatalf("KnownIDsAndPaths() error = %v", err)
	}
	if _, ok := ids["v1"]; !ok {
		t.Error("expected v1 in known ids")
	}
	if _, ok := ids["v2"]; !ok {
		t.Error("expected v2 in known ids")
	}
	if _, ok := paths["/data/v1.mp4"]; !ok {
		t.Error("expected /data/v1.mp4 in known paths")
	}
	if len(paths) != 1 {
		t.Errorf("known paths = %d entries, want 1 (empty paths skipped)", len(paths))
	}
}

func TestVideoRepo_UpdateMeta(t *testing.T) {
	db := openTestDB(t)
	repo := NewVideoRepo(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &VideoRecord{VideoID: "v1", Title: "old"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	channel := "channelA"
	duration := 360
	if err := repo.UpdateMeta(ctx, "v1", VideoMetaPatch{
		ChannelName:     &channel,
		DurationSeconds: &duration,
	}); err != nil {
		t.Fatalf("UpdateMeta() error = %v", err)
	}

	got, _ := repo.Get(ctx, "v1")
	if got.ChannelName != "channelA" || got.DurationSeconds != 360 {
		t.Errorf("after UpdateMeta: channel=%v duration=%v", got.ChannelName, got.DurationSeconds)
	}
	if got.Title != "old" {
		t.Errorf("Title changed unexpectedly to %v", got.Title)
	}

	// Empty patch is a no-op, not an error
	if err := repo.UpdateMeta(ctx, "v1", VideoMetaPatch{}); err != nil {
		t.Errorf("UpdateMeta(empty) error = %v", err)
	}
}

func TestVideoRepo_ListWithoutSegments(t *testing.T) {
	db := openTestDB(t)
	repo := NewVideoRepo(db)
	segRepo := NewSegmentRepo(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &VideoRecord{VideoID: "done", Title: "T"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, &VideoRecord{VideoID: "todo", Title: "T"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := segRepo.ReplaceForVideo(ctx, "done", []SegmentRecord{
		{SegmentID: "done-0", VideoID: "done", StartSec: 0, EndSec: 1, Text: "x"},
	}); err != nil {
		t.Fatalf("ReplaceForVideo() error = %v", err)
	}

	got, err := repo.ListWithoutSegments(ctx)
	if err != nil {
		t.Fatalf("ListWithoutSegments() error = %v", err)
	}
	if len(got) != 1 || got[0].VideoID != "todo" {
		t.Errorf("ListWithoutSegments() = %+v, want only todo", got)
	}
}
