package storage

import (
	"context"
	"testing"
)

func TestLogRepo_AppendAndList(t *testing.T) {
	db := openTestDB(t)
	videos := NewVideoRepo(db)
	repo := NewLogRepo(db)
	ctx := context.Background()

	seedVideo(t, videos, "v1")

	for _, msg := range []string{"download started", "download finished", "transcribe started"} {
		if err := repo.Append(ctx, "v1", "info", msg); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if err := repo.Append(ctx, "v1", "error", "transcribe failed"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := repo.ListByVideo(ctx, "v1", 0)
	if err != nil {
		t.Fatalf("ListByVideo() error = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("ListByVideo() returned %d entries, want 4", len(got))
	}
	if got[0].Message != "download started" || got[3].Level != "error" {
		t.Errorf("entries out of order: first=%q last level=%q", got[0].Message, got[3].Level)
	}

	limited, err := repo.ListByVideo(ctx, "v1", 2)
	if err != nil {
		t.Fatalf("ListByVideo(limit) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("ListByVideo(limit=2) returned %d entries", len(limited))
	}
}

func TestLogRepo_DeleteByVideo(t *testing.T) {
	db := openTestDB(t)
	videos := NewVideoRepo(db)
	repo := NewLogRepo(db)
	ctx := context.Background()

	seedVideo(t, videos, "v1")
	seedVideo(t, videos, "v2")
	if err := repo.Append(ctx, "v1", "info", "gone"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := repo.Append(ctx, "v2", "info", "kept"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if err := repo.DeleteByVideo(ctx, "v1"); err != nil {
		t.Fatalf("DeleteByVideo() error = %v", err)
	}

	got, _ := repo.ListByVideo(ctx, "v1", 0)
	if len(got) != 0 {
		t.Errorf("v1 logs after delete = %d, want 0", len(got))
	}
	got, _ = repo.ListByVideo(ctx, "v2", 0)
	if len(got) != 1 {
		t.Errorf("v2 logs = %d, want 1", len(got))
	}
}
