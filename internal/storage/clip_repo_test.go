package storage

import (
	"context"
	"testing"
)

func TestClipRepo_InsertAndList(t *testing.T) {
	db := openTestDB(t)
	videos := NewVideoRepo(db)
	repo := NewClipRepo(db)
	ctx := context.Background()

	seedVideo(t, videos, "v1")
	seedVideo(t, videos, "v2")

	clips := []*ClipRecord{
		{ClipID: "c1", VideoID: "v1", StartSec: 10, EndSec: 25, Path: "/data/clips/c1.mp4"},
		{ClipID: "c2", VideoID: "v1", StartSec: 40, EndSec: 55, Path: "/data/clips/c2.mp4"},
		{ClipID: "c3", VideoID: "v2", StartSec: 0, EndSec: 12, Path: "/data/clips/c3.mp4"},
	}
	for _, c := range clips {
		if err := repo.Insert(ctx, c); err != nil {
			t.Fatalf("Insert(%s) error = %v", c.ClipID, err)
		}
	}

	all, err := repo.List(ctx, "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List() returned %d clips, want 3", len(all))
	}

	forV1, err := repo.List(ctx, "v1")
	if err != nil {
		t.Fatalf("List(v1) error = %v", err)
	}
	if len(forV1) != 2 {
		t.Errorf("List(v1) returned %d clips, want 2", len(forV1))
	}
}

func TestClipRepo_DeleteByVideo(t *testing.T) {
	db := openTestDB(t)
	videos := NewVideoRepo(db)
	repo := NewClipRepo(db)
	ctx := context.Background()

	seedVideo(t, videos, "v1")
	if err := repo.Insert(ctx, &ClipRecord{ClipID: "c1", VideoID: "v1", StartSec: 0, EndSec: 5, Path: "/data/clips/c1.mp4"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := repo.Insert(ctx, &ClipRecord{ClipID: "c2", VideoID: "v1", StartSec: 5, EndSec: 9, Path: "/data/clips/c2.mp4"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	paths, err := repo.DeleteByVideo(ctx, "v1")
	if err != nil {
		t.Fatalf("DeleteByVideo() error = %v", err)
	}
	if len(paths) != 2 {
		t.Errorf("DeleteByVideo() returned %d paths, want 2", len(paths))
	}

	remaining, _ := repo.List(ctx, "v1")
	if len(remaining) != 0 {
		t.Errorf("clips after delete = %d, want 0", len(remaining))
	}
}
