// Package api exposes the localizer over HTTP for serve mode.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ContentLocalizer/internal/domain"
	"ContentLocalizer/internal/session"
	"ContentLocalizer/internal/usecase"
)

// Service is the slice of the localizer the HTTP layer drives.
type Service interface {
	Ensure(ctx context.Context, req usecase.Request) (usecase.Result, error)
	Status(ctx context.Context, contentID, language string) (domain.LocalizationJob, error)
	Cancel(ctx context.Context, contentID, language string) error
	Availability(ctx context.Context, contentID string, languages []string) ([]domain.LanguageAvailability, error)
	History(ctx context.Context, contentID string) ([]domain.LedgerEntry, error)
}

// Options configures the router.
type Options struct {
	SourceLanguage    string
	RequestsPerMinute int
	Session           session.Session
	Logger            *slog.Logger
}

// Server holds handler dependencies.
type Server struct {
	svc     Service
	opts    Options
	logger  *slog.Logger
	handler http.Handler
}

// NewServer builds the chi router with rate limiting and session propagation.
func NewServer(svc Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{svc: svc, opts: opts, logger: logger}
	s.handler = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.opts.RequestsPerMinute > 0 {
			r.Use(rateLimit(s.opts.RequestsPerMinute, time.Minute))
		}
		r.Use(s.withSession)

		r.Route("/contents/{contentID}", func(r chi.Router) {
			r.Get("/languages", s.handleAvailability)
			r.Get("/jobs", s.handleHistory)
			r.Put("/languages/{language}", s.handleEnsure)
			r.Get("/languages/{language}/status", s.handleStatus)
			r.Delete("/languages/{language}", s.handleCancel)
		})
	})

	return r
}

// rateLimit answers 429 with a JSON body once a client IP exceeds limit per window.
func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		}),
	)
}

// withSession attaches the process session, or a per-request bearer token when one is sent.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := s.opts.Session
		if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && strings.TrimSpace(token) != "" {
			sess = session.Session{Token: strings.TrimSpace(token)}
		}
		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
	})
}
