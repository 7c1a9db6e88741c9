// Package api serves a read-only HTTP view of a job repository.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/xraph/jobrepo/repository"
)

// API wires the HTTP handlers for a Repository.
type API struct {
	repo    *repository.Repository
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger for request errors.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// WithRateLimit enables a token bucket of burst tokens refilled at rps per
// second. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(a *API) {
		if rps <= 0 {
			a.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates an API over repo.
func New(repo *repository.Repository, opts ...Option) *API {
	a := &API{repo: repo, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	if a.limiter != nil {
		r.Use(a.rateLimit)
	}
	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all routes into r.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", a.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/jobs", a.listJobNames)
		r.Get("/jobs/{name}/instances", a.listInstances)
		r.Get("/jobs/{name}/running", a.listRunning)

		r.Get("/instances/{id}", a.getInstance)
		r.Get("/instances/{id}/executions", a.listExecutions)

		r.Get("/executions/{id}", a.getExecution)
		r.Get("/executions/{id}/steps", a.listSteps)

		r.Get("/steps/{id}", a.getStep)

		r.Get("/sequences", a.sequences)
		r.Get("/indexes", a.indexes)
	})
}

func (a *API) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
				Code:    "rate_limited",
				Message: "too many requests",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
