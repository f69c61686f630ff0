package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"clipfinder/internal/config"
	"clipfinder/internal/download"
	"clipfinder/internal/embed"
	"clipfinder/internal/http"
	"clipfinder/internal/indexer"
	"clipfinder/internal/media"
	"clipfinder/internal/pipeline"
	"clipfinder/internal/search"
	"clipfinder/internal/service"
	"clipfinder/internal/storage"
	"clipfinder/internal/transcriber"
	"clipfinder/internal/vectorstore"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Create repository instances
	videoRepo := storage.NewVideoRepo(db)
	segmentRepo := storage.NewSegmentRepo(db)
	queueRepo := storage.NewQueueRepo(db)
	logRepo := storage.NewLogRepo(db)
	clipRepo := storage.NewClipRepo(db)

	ctx := context.Background()

	// Initialize Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL, logger)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	// External service clients
	embedder := embed.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.QdrantVectorSize)
	whisper := transcriber.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.WhisperModel)

	// Local tool wrappers
	ffmpeg := media.NewRunner(cfg.FFmpegPath, cfg.FFprobePath, 0, "")
	ytdlp := download.NewClient(cfg.YtdlpPath, cfg.VideoDir, cfg.CookiesFile, cfg.DownloadRetries)
	transcribeService := transcriber.NewService(ffmpeg, whisper, filepath.Join(cfg.DataDir, "audio"))

	// Indexing pipeline
	indexerPipeline := indexer.NewPipeline(videoRepo, segmentRepo, embedder, vectorStore, cfg.QdrantCollection)

	// Job orchestrator
	orchestrator := pipeline.New(pipeline.Config{
		VideoDir:   cfg.VideoDir,
		Workers:    cfg.PipelineWorkers,
		QueueDepth: cfg.QueueDepth,
	}, pipeline.Deps{
		Queue:       queueRepo,
		Videos:      videoRepo,
		Segments:    segmentRepo,
		Logs:        logRepo,
		Clips:       clipRepo,
		Downloader:  ytdlp,
		Transcriber: transcribeService,
		Indexer:     indexerPipeline,
		Prober:      ffmpeg,
		Logger:      logger,
	})
	if err := orchestrator.Start(ctx); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}

	// Query-side services
	searchService := search.NewService(embedder, vectorStore, cfg.QdrantCollection, segmentRepo, videoRepo, cfg.SearchDefaultTopK)
	clipService := service.NewClipService(videoRepo, clipRepo, ffmpeg, cfg.ClipsDir)

	router := http.NewRouter(&http.Deps{
		DB:             db,
		Videos:         videoRepo,
		Segments:       segmentRepo,
		Logs:           logRepo,
		Orchestrator:   orchestrator,
		Indexer:        indexerPipeline,
		Search:         searchService,
		Clips:          clipService,
		VectorChecker:  vectorStore,
		CollectionName: cfg.QdrantCollection,
		ClipsDir:       cfg.ClipsDir,
	})

	addr := ":" + cfg.APIPort
	server := &nethttp.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting API server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	orchestrator.Close()
	slog.Info("Shutdown complete")
}
