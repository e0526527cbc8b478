package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spherical-ai/spherical/libs/study-engine/cmd/study-engine-api/handlers"
	"github.com/spherical-ai/spherical/libs/study-engine/cmd/study-engine-api/middleware"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/app"
)

// NewRouter creates the API router with all routes configured. promRegistry may be nil.
func NewRouter(a *app.App, promRegistry *prometheus.Registry) http.Handler {
	cfg := a.Config
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(a.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{"status": "healthy", "service": "study-engine"})
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ready", "models": "loaded", "database": "ok"}
		code := http.StatusOK
		if !a.Registry.Ready() {
			status["status"], status["models"] = "not_ready", "not_loaded"
			code = http.StatusServiceUnavailable
		}
		if a.DB != nil {
			if err := a.DB.PingContext(r.Context()); err != nil {
				status["status"], status["database"] = "not_ready", err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		writeStatus(w, code, status)
	})

	if promRegistry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	documentHandler := handlers.NewDocumentHandler(a.Logger, a.Service, a.Store, cfg.Extraction.MaxUploadBytes)
	modelHandler := handlers.NewModelHandler(a.Logger, a.Service)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(cfg.Server.WriteTimeout))

		r.Route("/models", func(r chi.Router) {
			r.Get("/", modelHandler.Status)
			r.Post("/load", modelHandler.Load)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", documentHandler.List)
			r.Post("/", documentHandler.Upload)
			r.Route("/{documentId}", func(r chi.Router) {
				r.Get("/", documentHandler.Get)
				r.Get("/text", documentHandler.Text)
				r.Post("/ask", documentHandler.Ask)
				r.Post("/summarize", documentHandler.Summarize)
				r.Post("/quiz", documentHandler.Quiz)
			})
		})

		if a.Store != nil {
			progressHandler := handlers.NewProgressHandler(a.Logger, a.Store)

			r.Route("/users", func(r chi.Router) {
				r.Post("/", progressHandler.CreateUser)
				r.Get("/{userId}", progressHandler.GetUser)
				r.Get("/{userId}/dashboard", progressHandler.Dashboard)
			})
			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", progressHandler.StartSession)
				r.Post("/{sessionId}/progress", progressHandler.AddProgress)
			})
		}
	})

	return r
}

func writeStatus(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
