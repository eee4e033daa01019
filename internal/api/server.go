// Package api serves a read-only HTTP view of the study storage.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/daihinmin-arena/internal/logx"
	"github.com/MJE43/daihinmin-arena/internal/store"
)

// Reader is the part of the store the API needs.
type Reader interface {
	Ping(ctx context.Context) error
	ListStudies(ctx context.Context) ([]store.Study, error)
	GetStudy(ctx context.Context, name string) (*store.Study, error)
	ListTrials(ctx context.Context, studyID string, page, perPage int) (*store.TrialsPage, error)
	BestTrial(ctx context.Context, studyID string) (*store.Trial, error)
	Summary(ctx context.Context, studyID string) (*store.FitnessSummary, error)
	GetTrial(ctx context.Context, id string) (*store.Trial, error)
	ListMatches(ctx context.Context, trialID string, limit, offset int) ([]store.MatchRecord, error)
}

// Server handles HTTP requests.
type Server struct {
	db           Reader
	errorHandler *ErrorHandler
	logger       *logx.Logger
	startTime    time.Time
}

// NewServer creates a new API server.
func NewServer(db Reader, logger *logx.Logger) *Server {
	if logger == nil {
		logger = logx.Discard()
	}
	return &Server{
		db:           db,
		errorHandler: NewErrorHandler(logger),
		logger:       logger,
		startTime:    time.Now(),
	}
}

// Routes sets up the HTTP routes with middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/version", s.handleVersion)
		r.Get("/studies", s.handleListStudies)
		r.Route("/studies/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetStudy)
			r.Get("/trials", s.handleListTrials)
			r.Get("/best", s.handleBestTrial)
			r.Get("/summary", s.handleSummary)
		})
		r.Get("/trials/{id}", s.handleGetTrial)
		r.Get("/trials/{id}/matches", s.handleListMatches)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debugf("request method=%s path=%s status=%d duration=%s request_id=%s",
			r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}

// writeJSON writes a JSON response with headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Arena-Version", Version)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("encode response: %v", err)
	}
}
