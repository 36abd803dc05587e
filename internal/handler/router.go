package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kesrow/constable/internal/auth"
	"github.com/kesrow/constable/internal/metrics"
	"github.com/kesrow/constable/internal/repository"
)

// RouterConfig contains everything the router wires together.
type RouterConfig struct {
	AuthHandler   *AuthHandler
	SearchHandler *SearchHandler
	VocabHandler  *VocabHandler
	Sessions      auth.SessionValidator
	Metrics       *metrics.Metrics // optional
	Health        repository.DatabaseHealth
	Logger        zerolog.Logger
}

// NewRouter builds the HTTP route tree.
//
// The vocabulary listings, registration, login and the health probe are
// public; the search endpoint and logout sit behind the bearer-token
// middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger.With().Str("component", "router").Logger()

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	r.Get("/healthz", handleHealth(cfg.Health))

	cfg.VocabHandler.RegisterRoutes(r)
	cfg.AuthHandler.RegisterRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Sessions, writeError, cfg.Logger))
		cfg.SearchHandler.RegisterRoutes(r)
		cfg.AuthHandler.RegisterProtectedRoutes(r)
	})

	return r
}

func handleHealth(health repository.DatabaseHealth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := health.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

// requestID attaches a request identifier to the response and the chi
// request context.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger emits one structured log line per request.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("Request handled")
		})
	}
}
