package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/photo-tagger/internal/web/handlers"
	"github.com/kozaktomas/photo-tagger/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	// Create handlers
	uploadHandler := handlers.NewUploadHandler(s.config, s.store)
	photosHandler := handlers.NewPhotosHandler(s.config, s.store)
	analyzeHandler := handlers.NewAnalyzeHandler(s.config, s.store, s.jobManager)
	exportHandler := handlers.NewExportHandler(s.config, s.store, s.embedder)
	configHandler := handlers.NewConfigHandler(s.config)
	statsHandler := handlers.NewStatsHandler(s.config, s.store, s.jobManager)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAPIKey(s.config.Web.APIKey))

			// Photos
			r.Post("/photos", uploadHandler.Upload)
			r.Get("/photos", photosHandler.List)
			r.Get("/photos/{id}", photosHandler.Get)
			r.Patch("/photos/{id}", photosHandler.Update)
			r.Delete("/photos/{id}", photosHandler.Delete)
			r.Post("/photos/{id}/keywords", photosHandler.AddKeyword)
			r.Delete("/photos/{id}/keywords/{keyword}", photosHandler.RemoveKeyword)
			r.Post("/photos/{id}/retry", photosHandler.Retry)

			// Analysis (long-running operations)
			r.Post("/analyze", analyzeHandler.Start)
			r.Get("/analyze/{jobId}", analyzeHandler.Status)
			r.Get("/analyze/{jobId}/events", analyzeHandler.Events)
			r.Delete("/analyze/{jobId}", analyzeHandler.Cancel)

			// Export
			r.Get("/export/archive", exportHandler.Archive)
			r.Get("/export/csv", exportHandler.CSV)
			r.Get("/export/photos/{id}", exportHandler.Single)

			// Config
			r.Get("/config", configHandler.Get)

			// Stats
			r.Get("/stats", statsHandler.Get)
		})
	})
}
