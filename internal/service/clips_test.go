package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"clipfinder/internal/media"
	"clipfinder/internal/storage"
)

type fakeCutter struct {
	req   media.CutRequest
	err   error
	calls int
}

func (f *fakeCutter) CutClip(_ context.Context, req media.CutRequest) error {
	f.calls++
	f.req = req
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(req.Dst, []byte("clip"), 0o644)
}

func setupClipService(t *testing.T) (*ClipService, *fakeCutter, *storage.VideoRepo, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("storage.Migrate() error = %v", err)
	}

	videos := storage.NewVideoRepo(db)
	clips := storage.NewClipRepo(db)
	cutter := &fakeCutter{}
	svc := NewClipService(videos, clips, cutter, filepath.Join(dir, "clips"))
	return svc, cutter, videos, dir
}

func seedVideoWithFile(t *testing.T, videos *storage.VideoRepo, dir, videoID string) string {
	t.Helper()
	path := filepath.Join(dir, videoID+".mp4")
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := videos.Create(context.Background(), &storage.VideoRecord{
		VideoID:  videoID,
		Title:    "Test video",
		FilePath: path,
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return path
}

func TestClipService_CreateClip(t *testing.T) {
	svc, cutter, videos, dir := setupClipService(t)
	src := seedVideoWithFile(t, videos, dir, "v1")
	ctx := context.Background()

	record, err := svc.CreateClip(ctx, CreateClipRequest{
		VideoID:     "v1",
		Start:       10,
		End:         25.5,
		Precise:     true,
		WithMargins: true,
	})
	if err != nil {
		t.Fatalf("CreateClip() error = %v", err)
	}
	if record.ClipID == "" || len(record.ClipID) != 8 {
		t.Errorf("ClipID = %q, want 8-char id", record.ClipID)
	}
	if record.VideoID != "v1" || record.StartSec != 10 || record.EndSec != 25.5 {
		t.Errorf("record = %+v", record)
	}
	if cutter.req.Src != src || !cutter.req.Precise || !cutter.req.WithMargins {
		t.Errorf("cut request = %+v, want src/precise/margins", cutter.req)
	}
	if cutter.req.Dst != record.Path {
		t.Errorf("cut dst %q != recorded path %q", cutter.req.Dst, record.Path)
	}

	listed, err := svc.ListClips(ctx, "v1")
	if err != nil {
		t.Fatalf("ListClips() error = %v", err)
	}
	if len(listed) != 1 || listed[0].ClipID != record.ClipID {
		t.Errorf("ListClips() = %+v, want the created clip", listed)
	}
}

func TestClipService_CreateClip_Validation(t *testing.T) {
	svc, cutter, videos, dir := setupClipService(t)
	seedVideoWithFile(t, videos, dir, "v1")

	tests := []struct {
		name string
		req  CreateClipRequest
	}{
		{"empty video id", CreateClipRequest{VideoID: "", Start: 0, End: 5}},
		{"negative start", CreateClipRequest{VideoID: "v1", Start: -1, End: 5}},
		{"end equals start", CreateClipRequest{VideoID: "v1", Start: 5, End: 5}},
		{"end before start", CreateClipRequest{VideoID: "v1", Start: 10, End: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateClip(context.Background(), tt.req)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("CreateClip() error = %v, want ErrInvalidInput", err)
			}
		})
	}
	if cutter.calls != 0 {
		t.Errorf("cutter called %d times for invalid requests", cutter.calls)
	}
}

func TestClipService_CreateClip_UnknownVideo(t *testing.T) {
	svc, _, _, _ := setupClipService(t)

	_, err := svc.CreateClip(context.Background(), CreateClipRequest{VideoID: "ghost", Start: 0, End: 5})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateClip() error = %v, want ErrNotFound", err)
	}
}

func TestClipService_CreateClip_MissingFile(t *testing.T) {
	svc, _, videos, dir := setupClipService(t)
	path := seedVideoWithFile(t, videos, dir, "v1")
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	_, err := svc.CreateClip(context.Background(), CreateClipRequest{VideoID: "v1", Start: 0, End: 5})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateClip() error = %v, want ErrNotFound", err)
	}
}

func TestClipService_CreateClip_CutFailure(t *testing.T) {
	svc, cutter, videos, dir := setupClipService(t)
	seedVideoWithFile(t, videos, dir, "v1")
	cutter.err = errors.New("ffmpeg exploded")

	_, err := svc.CreateClip(context.Background(), CreateClipRequest{VideoID: "v1", Start: 0, End: 5})
	if err == nil {
		t.Fatal("CreateClip() expected error, got nil")
	}

	listed, err := svc.ListClips(context.Background(), "v1")
	if err != nil {
		t.Fatalf("ListClips() error = %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("ListClips() = %+v, want none after failed cut", listed)
	}
}
