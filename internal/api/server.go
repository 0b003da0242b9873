// Package api exposes the run service over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ETAnderson/grader/internal/api/handlers"
	"github.com/ETAnderson/grader/internal/api/middleware"
	"github.com/ETAnderson/grader/internal/service"
)

type Options struct {
	// Idempotency, when set, dedupes POST /runs by Idempotency-Key.
	Idempotency    *middleware.MemoryIdempotencyStore
	RequestTimeout time.Duration
}

func NewRouter(svc *service.Service, opts Options) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	runs := handlers.RunsHandler{Service: svc}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(opts.RequestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Route("/runs", func(r chi.Router) {
		r.With(middleware.Idempotency(opts.Idempotency)).Post("/", runs.Create)
		r.Get("/", runs.List)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", runs.Get)
			r.Get("/analysis.md", runs.Report("analysis"))
			r.Get("/scoring.md", runs.Report("scoring"))
			r.Post("/enqueue", runs.Enqueue)
		})
	})

	return r
}
