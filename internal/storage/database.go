package storage

import (
	"database/sql"
	"errors"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("record not found")

// New opens a SQLite database connection at the given path.
// It enables foreign keys, WAL mode, and sets connection pool settings.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate runs database migrations to create the required tables.
// It is idempotent and can be run multiple times safely.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS videos (
			video_id          TEXT PRIMARY KEY,
			title             TEXT NOT NULL,
			channel_name      TEXT NOT NULL DEFAULT '',
			source_url        TEXT NOT NULL DEFAULT '',
			duration_seconds  INTEGER NOT NULL DEFAULT 0,
			thumbnail_url     TEXT NOT NULL DEFAULT '',
			file_path         TEXT NOT NULL DEFAULT '',
			status_download   TEXT NOT NULL DEFAULT 'pending'
				CHECK (status_download IN ('pending','processing','done','failed')),
			status_transcribe TEXT NOT NULL DEFAULT 'pending'
				CHECK (status_transcribe IN ('pending','processing','done','failed')),
			status_index      TEXT NOT NULL DEFAULT 'pending'
				CHECK (status_index IN ('pending','processing','done','failed')),
			created_at        DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS segments (
			segment_id TEXT PRIMARY KEY,
			video_id   TEXT NOT NULL,
			start_sec  REAL NOT NULL,
			end_sec    REAL NOT NULL,
			text       TEXT NOT NULL,
			words_json TEXT NOT NULL DEFAULT '',
			FOREIGN KEY (video_id) REFERENCES videos(video_id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS queue (
			video_id   TEXT PRIMARY KEY,
			stage      TEXT NOT NULL
				CHECK (stage IN ('download','transcribe','index')),
			status     TEXT NOT NULL
				CHECK (status IN ('waiting','downloading','processing','done','error')),
			title      TEXT NOT NULL DEFAULT '',
			error      TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS processing_logs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			video_id   TEXT NOT NULL,
			level      TEXT NOT NULL,
			message    TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS clips (
			clip_id    TEXT PRIMARY KEY,
			video_id   TEXT NOT NULL,
			start_sec  REAL NOT NULL,
			end_sec    REAL NOT NULL,
			path       TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_seg_video ON segments(video_id);`,
		`CREATE INDEX IF NOT EXISTS idx_seg_start ON segments(start_sec);`,
		`CREATE INDEX IF NOT EXISTS idx_queue_status ON queue(status);`,
		`CREATE INDEX IF NOT EXISTS idx_video_created ON videos(created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_log_video ON processing_logs(video_id);`,
		`CREATE INDEX IF NOT EXISTS idx_clip_video ON clips(video_id);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	if !FTS5Enabled(db) {
		slog.Warn("sqlite built without FTS5; full-text search disabled (rebuild with -tags fts5)")
		return nil
	}

	// FTS5 full-text index over indexed segment text (BM25 ranking).
	_, err := db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS segments_fts USING fts5(
		segment_id UNINDEXED,
		video_id UNINDEXED,
		text,
		tokenize='unicode61'
	);`)
	return err
}

// FTS5Enabled reports whether the linked SQLite library was compiled with
// the FTS5 extension. mattn/go-sqlite3 includes it only under the fts5
// build tag.
func FTS5Enabled(db *sql.DB) bool {
	var n int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM pragma_compile_options WHERE compile_options = 'ENABLE_FTS5'").Scan(&n)
	return err == nil && n > 0
}
