package storage

import (
	"database/sql"
	"testing"
)

// openTestDB opens a migrated SQLite database in a temp directory.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := tmpDir + "/test.db"

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestNewAndMigrate(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := tmpDir + "/test.db"

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// Migrate must be idempotent
	if err := Migrate(db); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	// All tables should exist
	tables := []string{"videos", "segments", "queue", "processing_logs", "clips"}
	if FTS5Enabled(db) {
		tables = append(tables, "segments_fts")
	}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing after Migrate(): %v", table, err)
		}
	}
}

func TestMigrate_RejectsInvalidStatus(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := New(tmpDir + "/test.db")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		_ = db.Close()
	}()
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	_, err = db.Exec(
		"INSERT INTO videos (video_id, title, status_download) VALUES ('v1', 'T', 'bogus')")
	if err == nil {
		t.Error("expected CHECK constraint to reject invalid stage status")
	}
}

func TestMigrate_SegmentsCascadeOnVideoDelete(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := New(tmpDir + "/test.db")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		_ = db.Close()
	}()
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if _, err := db.Exec("INSERT INTO videos (video_id, title) VALUES ('v1', 'T')"); err != nil {
		t.Fatalf("insert video: %v", err)
	}
	if _, err := db.Exec(
		"INSERT INTO segments (segment_id, video_id, start_sec, end_sec, text) VALUES ('v1-0', 'v1', 0, 5, 'hello')"); err != nil {
		t.Fatalf("insert segment: %v", err)
	}
	if _, err := db.Exec("DELETE FROM videos WHERE video_id = 'v1'"); err != nil {
		t.Fatalf("delete video: %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM segments WHERE video_id = 'v1'").Scan(&n); err != nil {
		t.Fatalf("count segments: %v", err)
	}
	if n != 0 {
		t.Errorf("segments remaining after video delete = %d, want 0", n)
	}
}
