// Package web exposes the review service as a JSON HTTP API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/knolstudy/internal/review"
	"github.com/conorfennell/knolstudy/internal/srs"
	"github.com/conorfennell/knolstudy/internal/storage"
	"github.com/conorfennell/knolstudy/internal/sync"
)

// Syncer runs a source import on demand.
type Syncer interface {
	Run(ctx context.Context) (sync.Report, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes the middleware stack. Zero values disable the feature.
type Options struct {
	RateLimit      int // requests per minute per client IP
	RequestTimeout time.Duration
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	svc      *review.Service
	syncer   Syncer
	db       Pinger
	log      *slog.Logger
	validate *validator.Validate
	router   *chi.Mux
}

// NewServer creates and configures a new server. syncer may be nil, in which
// case POST /v1/sync answers 503.
func NewServer(svc *review.Service, syncer Syncer, db Pinger, log *slog.Logger, opts Options) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		svc:      svc,
		syncer:   syncer,
		db:       db,
		log:      log.With("component", "web"),
		validate: validator.New(),
		router:   chi.NewRouter(),
	}
	s.routes(opts)
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes(opts Options) {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}
	if opts.RateLimit > 0 {
		r.Use(httprate.LimitByIP(opts.RateLimit, time.Minute))
	}

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/sync", s.handleSync)

		r.Route("/owners/{owner}", func(r chi.Router) {
			r.Get("/stats", s.handleStats)
			r.Get("/queue", s.handleQueue)

			r.Get("/decks", s.handleDecks)
			r.Get("/decks/{deck}", s.handleDeck)
			r.Get("/decks/{deck}/queue", s.handleQueue)

			r.Post("/cards", s.handleCreateCard)
			r.Get("/cards/{id}", s.handleGetCard)
			r.Delete("/cards/{id}", s.handleDeleteCard)
			r.Get("/cards/{id}/preview", s.handlePreview)
			r.Get("/cards/{id}/history", s.handleHistory)
			r.Post("/cards/{id}/review", s.handleReview)
		})
	})
}

// requestLogger logs one line per request once the response is written.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// Response is the envelope of every API reply.
type Response struct {
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, status int, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		s.log.Warn("failed to write response", "error", err)
	}
}

func (s *Server) ok(w http.ResponseWriter, data any) {
	s.respond(w, http.StatusOK, Response{Data: data})
}

// fail maps service errors onto HTTP statuses.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, srs.ErrInvalidQuality):
		status, code = http.StatusBadRequest, "invalid_quality"
	case errors.Is(err, srs.ErrInvalidCardState):
		status, code = http.StatusInternalServerError, "data_integrity"
	case errors.Is(err, storage.ErrCardNotFound), errors.Is(err, storage.ErrSourceNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, review.ErrConflict), errors.Is(err, storage.ErrVersionConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, storage.ErrDuplicate):
		status, code = http.StatusConflict, "duplicate"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status, code = http.StatusServiceUnavailable, "timeout"
	}

	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		if code == "internal" {
			s.respond(w, status, Response{Code: code, Error: "internal server error"})
			return
		}
	}
	s.respond(w, status, Response{Code: code, Error: err.Error()})
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.respond(w, http.StatusBadRequest, Response{Code: "bad_request", Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.log.Error("health check failed", "error", err)
			s.respond(w, http.StatusServiceUnavailable, Response{Code: "unavailable", Error: "database unreachable"})
			return
		}
	}
	s.respond(w, http.StatusOK, Response{Message: "ok"})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		s.respond(w, http.StatusServiceUnavailable, Response{Code: "unavailable", Error: "sync is not configured"})
		return
	}
	report, err := s.syncer.Run(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, report)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Summary(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, sum)
}

func (s *Server) handleDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := s.svc.Decks(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, decks)
}

func (s *Server) handleDeck(w http.ResponseWriter, r *http.Request) {
	deck, err := s.svc.Deck(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "deck"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, deck)
}

// handleQueue serves both the all-decks and the per-deck study queue.
func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.badRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	queue, err := s.svc.StudyQueue(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "deck"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, queue)
}

type createCardRequest struct {
	Deck  string `json:"deck" validate:"required,max=200"`
	Front string `json:"front" validate:"required"`
	Back  string `json:"back" validate:"required"`
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	card, err := s.svc.CreateCard(r.Context(), chi.URLParam(r, "owner"), req.Deck, req.Front, req.Back)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, Response{Data: card})
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.svc.Card(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, card)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteCard(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	previews, err := s.svc.Preview(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, previews)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.svc.History(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, history)
}

type reviewRequest struct {
	Quality *int `json:"quality" validate:"required"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.badRequest(w, "quality is required")
		return
	}
	q, err := srs.ParseQuality(*req.Quality)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	card, err := s.svc.Review(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "id"), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, card)
}
