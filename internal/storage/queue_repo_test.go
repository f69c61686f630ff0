package storage

import (
	"context"
	"errors"
	"testing"
)

func TestQueueRepo_UpsertAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewQueueRepo(db)
	ctx := context.Background()

	e := &QueueEntry{
		VideoID: "v1",
		Stage:   StageDownload,
		Status:  QueueWaiting,
		Title:   "Budget session",
	}
	if err := repo.Upsert(ctx, e); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := repo.Get(ctx, "v1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Stage != StageDownload || got.Status != QueueWaiting || got.Title != "Budget session" {
		t.Errorf("Get() = %+v, want inserted fields", got)
	}

	// Replacing the entry resets stage, status, and error
	if err := repo.Upsert(ctx, &QueueEntry{
		VideoID: "v1",
		Stage:   StageTranscribe,
		Status:  QueueWaiting,
		Title:   "Budget session",
	}); err != nil {
		t.Fatalf("Upsert() replace error = %v", err)
	}
	got, err = repo.Get(ctx, "v1")
	if err != nil {
		t.Fatalf("Get() after replace error = %v", err)
	}
	if got.Stage != StageTranscribe || got.Error != "" {
		t.Errorf("after replace: stage=%v error=%q, want transcribe with no error", got.Stage, got.Error)
	}

	_, err = repo.Get(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestQueueRepo_GetActive(t *testing.T) {
	db := openTestDB(t)
	repo := NewQueueRepo(db)
	ctx := context.Background()

	if err := repo.Upsert(ctx, &QueueEntry{VideoID: "v1", Stage: StageDownload, Status: QueueWaiting}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if _, err := repo.GetActive(ctx, "v1"); err != nil {
		t.Errorf("GetActive(waiting) error = %v, want nil", err)
	}

	if err := repo.SetStatus(ctx, "v1", QueueDone, ""); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if _, err := repo.GetActive(ctx, "v1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetActive(done) error = %v, want ErrNotFound", err)
	}

	if err := repo.SetStatus(ctx, "v1", QueueError, "boom"); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if _, err := repo.GetActive(ctx, "v1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetActive(error) error = %v, want ErrNotFound", err)
	}
}

func TestQueueRepo_SetStatus(t *testing.T) {
	db := openTestDB(t)
	repo := NewQueueRepo(db)
	ctx := context.Background()

	if err := repo.Upsert(ctx, &QueueEntry{VideoID: "v1", Stage: StageDownload, Status: QueueWaiting}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := repo.SetStatus(ctx, "v1", QueueError, "network unreachable"); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	got, _ := repo.Get(ctx, "v1")
	if got.Status != QueueError || got.Error != "network unreachable" {
		t.Errorf("after SetStatus: status=%v error=%q", got.Status, got.Error)
	}

	if err := repo.SetStatus(ctx, "missing", QueueDone, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatus(missing) error = %v, want ErrNotFound", err)
	}
}

func TestQueueRepo_DeleteAndClearTerminal(t *testing.T) {
	db := openTestDB(t)
	repo := NewQueueRepo(db)
	ctx := context.Background()

	for _, e := range []*QueueEntry{
		{VideoID: "active", Stage: StageDownload, Status: QueueDownloading},
		{VideoID: "finished", Stage: StageIndex, Status: QueueDone},
		{VideoID: "broken", Stage: StageTranscribe, Status: QueueError, Error: "whisper failed"},
	} {
		if err := repo.Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert(%s) error = %v", e.VideoID, err)
		}
	}

	if err := repo.Delete(ctx, "finished"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "finished"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrNotFound", err)
	}

	n, err := repo.ClearTerminal(ctx)
	if err != nil {
		t.Fatalf("ClearTerminal() error = %v", err)
	}
	if n != 1 {
		t.Errorf("ClearTerminal() = %d, want 1 (only the error entry)", n)
	}

	remaining, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(remaining) != 1 || remaining[0].VideoID != "active" {
		t.Errorf("List() after clear = %+v, want only active entry", remaining)
	}
}

func TestQueueRepo_FailInFlight(t *testing.T) {
	db := openTestDB(t)
	repo := NewQueueRepo(db)
	ctx := context.Background()

	for _, e := range []*QueueEntry{
		{VideoID: "waiting", Stage: StageDownload, Status: QueueWaiting},
		{VideoID: "running", Stage: StageTranscribe, Status: QueueProcessing},
		{VideoID: "finished", Stage: StageIndex, Status: QueueDone},
	} {
		if err := repo.Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert(%s) error = %v", e.VideoID, err)
		}
	}

	n, err := repo.FailInFlight(ctx, "interrupted by restart")
	if err != nil {
		t.Fatalf("FailInFlight() error = %v", err)
	}
	if n != 2 {
		t.Errorf("FailInFlight() = %d, want 2", n)
	}

	for _, id := range []string{"waiting", "running"} {
		got, _ := repo.Get(ctx, id)
		if got.Status != QueueError || got.Error != "interrupted by restart" {
			t.Errorf("%s after FailInFlight: status=%v error=%q", id, got.Status, got.Error)
		}
	}
	done, _ := repo.Get(ctx, "finished")
	if done.Status != QueueDone {
		t.Errorf("finished entry status = %v, want done untouched", done.Status)
	}
}
