package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	APIPort   string
	LogLevel  slog.Level
	LogFormat string

	DBPath   string
	DataDir  string
	VideoDir string
	ClipsDir string

	QdrantURL        string
	QdrantCollection string
	QdrantVectorSize int

	OpenAIBaseURL  string
	OpenAIAPIKey   string
	EmbeddingModel string
	WhisperModel   string

	YtdlpPath   string
	FFmpegPath  string
	FFprobePath string
	CookiesFile string

	PipelineWorkers  int
	QueueDepth       int
	DownloadRetries  int
	SearchDefaultTopK int
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load() // Try current directory

	// Try to find project root by looking for a .env next to go.mod
	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	dataDir := getEnv("DATA_DIR", "./data")

	cfg := &Config{
		APIPort:   getEnv("API_PORT", "8000"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DBPath:   getEnv("DB_PATH", filepath.Join(dataDir, "clipfinder.db")),
		DataDir:  dataDir,
		VideoDir: getEnv("VIDEO_DIR", filepath.Join(dataDir, "videos")),
		ClipsDir: getEnv("CLIPS_DIR", filepath.Join(dataDir, "clips")),

		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "segments"),

		// Base URL without the /v1 suffix; the API clients append it.
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		WhisperModel:   getEnv("WHISPER_MODEL", "whisper-1"),

		YtdlpPath:   getEnv("YTDLP_PATH", "yt-dlp"),
		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),
		CookiesFile: getEnv("COOKIES_FILE", ""),
	}

	cfg.LogLevel, err = parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	// Vector size must match the embedding model output; the Qdrant collection
	// has to be recreated if it changes.
	vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "1536")
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}
	cfg.QdrantVectorSize = vectorSize

	cfg.PipelineWorkers, err = getEnvInt("PIPELINE_WORKERS", 2)
	if err != nil {
		return nil, err
	}
	if cfg.PipelineWorkers < 1 {
		return nil, fmt.Errorf("PIPELINE_WORKERS must be at least 1")
	}

	cfg.QueueDepth, err = getEnvInt("QUEUE_DEPTH", 64)
	if err != nil {
		return nil, err
	}
	if cfg.QueueDepth < 1 {
		return nil, fmt.Errorf("QUEUE_DEPTH must be at least 1")
	}

	cfg.DownloadRetries, err = getEnvInt("DOWNLOAD_RETRIES", 2)
	if err != nil {
		return nil, err
	}
	if cfg.DownloadRetries < 0 {
		return nil, fmt.Errorf("DOWNLOAD_RETRIES must not be negative")
	}

	cfg.SearchDefaultTopK, err = getEnvInt("SEARCH_DEFAULT_TOP_K", 20)
	if err != nil {
		return nil, err
	}

	// Create managed data directories
	for _, dir := range []string{cfg.DataDir, cfg.VideoDir, cfg.ClipsDir, filepath.Dir(cfg.DBPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}

	return cfg, nil
}

// parseLogLevel converts a level name into a slog.Level.
func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL %q (expected debug|info|warn|error)", s)
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}
