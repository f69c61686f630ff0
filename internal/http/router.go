package http

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"clipfinder/internal/handlers"
	"clipfinder/internal/indexer"
	"clipfinder/internal/pipeline"
	"clipfinder/internal/search"
	"clipfinder/internal/service"
	"clipfinder/internal/storage"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	DB             *sql.DB
	Videos         storage.VideoStore
	Segments       storage.SegmentStore
	Logs           storage.LogStore
	Orchestrator   *pipeline.Orchestrator
	Indexer        *indexer.Pipeline
	Search         *search.Service
	Clips          *service.ClipService
	VectorChecker  handlers.CollectionChecker
	CollectionName string
	ClipsDir       string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(LoggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	videoHandler := handlers.NewVideoHandler(deps.Videos, deps.Segments, deps.Logs, deps.Orchestrator)
	downloadHandler := handlers.NewDownloadHandler(deps.Orchestrator)
	queueHandler := handlers.NewQueueHandler(deps.Orchestrator)
	searchHandler := handlers.NewSearchHandler(deps.Search)
	clipHandler := handlers.NewClipHandler(deps.Clips)
	embeddingHandler := handlers.NewEmbeddingHandler(deps.Indexer)
	channelHandler := handlers.NewChannelHandler(deps.Videos)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.VectorChecker, deps.CollectionName)

	r.Method(http.MethodGet, "/healthz", healthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/download/youtube", downloadHandler)
		r.Method(http.MethodPost, "/search", searchHandler)
		r.Method(http.MethodGet, "/channels", channelHandler)

		r.Route("/videos", func(r chi.Router) {
			r.Get("/", videoHandler.List)
			r.Post("/", videoHandler.Create)
			r.Post("/scan", videoHandler.Scan)
			r.Post("/process-pending", videoHandler.ProcessPending)
			r.Route("/{video_id}", func(r chi.Router) {
				r.Get("/", videoHandler.Get)
				r.Patch("/", videoHandler.UpdateMeta)
				r.Delete("/", videoHandler.Delete)
				r.Get("/transcript", videoHandler.Transcript)
				r.Get("/logs", videoHandler.Logs)
				r.Post("/transcribe", videoHandler.Transcribe)
				r.Post("/index", videoHandler.Index)
				r.Post("/reprocess", videoHandler.Reprocess)
			})
		})

		r.Route("/queue", func(r chi.Router) {
			r.Get("/", queueHandler.List)
			r.Post("/clear", queueHandler.Clear)
			r.Delete("/{video_id}", queueHandler.Dequeue)
		})

		r.Route("/clips", func(r chi.Router) {
			r.Get("/", clipHandler.List)
			r.Post("/manual", clipHandler.Create)
		})

		r.Route("/embeddings", func(r chi.Router) {
			r.Get("/orphaned", embeddingHandler.Orphaned)
			r.Get("/{video_id}", embeddingHandler.Count)
			r.Delete("/{video_id}", embeddingHandler.Delete)
		})
	})

	// Produced clips are served directly for playback and download
	if deps.ClipsDir != "" {
		fileServer := http.StripPrefix("/files/clips/", http.FileServer(http.Dir(deps.ClipsDir)))
		r.Get("/files/clips/*", fileServer.ServeHTTP)
	}

	return r
}
