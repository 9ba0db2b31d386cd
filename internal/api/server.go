package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/chatstats/internal/conversation"
	"github.com/MikeSquared-Agency/chatstats/internal/hermes"
	"github.com/MikeSquared-Agency/chatstats/internal/report"
	"github.com/MikeSquared-Agency/chatstats/internal/stats"
	"github.com/MikeSquared-Agency/chatstats/internal/store"
)

const (
	maxUploadBytes = 64 << 20
	defaultLimit   = 50
	maxLimit       = 500
	recentCap      = 100
)

// Repository is the storage the API reads from and optionally writes to.
type Repository interface {
	SaveSummary(ctx context.Context, sum store.Summary) (uuid.UUID, error)
	GetSummary(ctx context.Context, id uuid.UUID) (*store.Summary, error)
	ListSummaries(ctx context.Context, limit int) ([]store.Summary, error)
}

// Publisher announces analyzed conversations.
type Publisher interface {
	Publish(subject string, data any) error
}

type Server struct {
	router   *chi.Mux
	port     int
	apiToken string
	repo     Repository
	pub      Publisher
	opts     stats.Options
	logger   *slog.Logger

	mu     sync.Mutex
	recent []hermes.AnalyzedEvent // oldest first, at most recentCap
}

// AnalyzeResponse is returned by POST /api/v1/analyze.
type AnalyzeResponse struct {
	SummaryID  string            `json:"summary_id,omitempty"`
	Statistics *stats.Statistics `json:"statistics"`
}

// NewServer builds the HTTP API. repo and pub may be nil.
func NewServer(port int, apiToken string, repo Repository, pub Publisher, opts stats.Options, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		apiToken: apiToken,
		repo:     repo,
		pub:      pub,
		opts:     opts,
		logger:   logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/chatstats/status", s.status)
	router.Get("/api/v1/chatstats/recent", s.recentAnalyzed)
	router.Route("/api/v1/conversations", func(r chi.Router) {
		r.Get("/", s.listConversations)
		r.Get("/{id}", s.getConversation)
	})
	router.Group(func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Post("/api/v1/analyze", s.analyze)
	})

	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	events := s.pub != nil
	if c, ok := s.pub.(interface{ Connected() bool }); ok {
		events = c.Connected()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":   "chatstats",
		"status":  "ok",
		"storage": s.repo != nil,
		"events":  events,
	})
}

// RecordAnalyzed adds an analyzed event seen on the bus to the recent feed.
// It is safe to call from subscription callbacks.
func (s *Server) RecordAnalyzed(ev hermes.AnalyzedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, ev)
	if len(s.recent) > recentCap {
		s.recent = slices.Clone(s.recent[len(s.recent)-recentCap:])
	}
}

// recentAnalyzed handles GET /api/v1/chatstats/recent, newest first.
func (s *Server) recentAnalyzed(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	events := slices.Clone(s.recent)
	s.mu.Unlock()
	slices.Reverse(events)
	if events == nil {
		events = []hermes.AnalyzedEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// listConversations handles GET /api/v1/conversations?limit=N
func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "storage not configured")
		return
	}

	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxLimit)
	}

	list, err := s.repo.ListSummaries(r.Context(), limit)
	if err != nil {
		s.logger.Error("list summaries failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	if list == nil {
		list = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": list,
		"count":         len(list),
	})
}

// getConversation handles GET /api/v1/conversations/{id}
func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "storage not configured")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	sum, err := s.repo.GetSummary(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.logger.Error("get summary failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "get failed")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// analyze handles POST /api/v1/analyze. The body is one export shard.
// Query: format=text for the plain report, user=NAME to filter it, save=true to persist.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	conv, _, err := conversation.ParseShard(data, "request")
	var malformed *conversation.MalformedShardError
	if errors.As(err, &malformed) {
		writeError(w, http.StatusBadRequest, malformed.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := s.opts
	opts.Logger = s.logger
	st, err := stats.Compute(conv, opts)
	if errors.Is(err, stats.ErrEmptyConversation) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("compute failed", "error", err)
		writeError(w, http.StatusInternalServerError, "compute failed")
		return
	}

	q := r.URL.Query()
	if q.Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		err := report.WriteText(w, st, report.Options{User: q.Get("user"), TopN: opts.TopN})
		if errors.Is(err, report.ErrUnknownParticipant) {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	resp := AnalyzeResponse{Statistics: st}
	if q.Get("save") == "true" && s.repo != nil {
		runID := uuid.New()
		sum, err := store.NewSummary(runID, "api", st)
		if err == nil {
			var id uuid.UUID
			id, err = s.repo.SaveSummary(r.Context(), sum)
			resp.SummaryID = id.String()
		}
		if err != nil {
			s.logger.Error("save summary failed", "error", err)
			writeError(w, http.StatusInternalServerError, "save failed")
			return
		}
		if s.pub != nil {
			ev := hermes.NewAnalyzedEvent(runID.String(), resp.SummaryID, "api", st)
			if err := s.pub.Publish(hermes.SubjectConversationAnalyzed, ev); err != nil {
				s.logger.Warn("failed to publish analyzed event", "error", err)
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
