// Package server exposes the pass trigger and read-only operational
// endpoints over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/observability"
	"fee-reinvestor/internal/storage"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 50
	defaultRunsLimit     = 10
	maxRunsLimit         = 50
)

// Runner starts passes. Implemented by orchestrator.Orchestrator.
type Runner interface {
	Run(ctx context.Context, trigger string) (*domain.PassSummary, error)
	InFlight() int
	LastSummary() *domain.PassSummary
}

// Options configures Server.
type Options struct {
	CronSecret string
	Runner     Runner
	Activity   storage.ActivityStore
	Runs       storage.RunStore // optional
	Logger     *zap.Logger
}

// Server serves the HTTP API.
type Server struct {
	cronSecret string
	runner     Runner
	activity   storage.ActivityStore
	runs       storage.RunStore
	logger     *zap.Logger
	started    time.Time
}

// New creates a new Server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Server{
		cronSecret: opts.CronSecret,
		runner:     opts.Runner,
		activity:   opts.Activity,
		runs:       opts.Runs,
		logger:     opts.Logger.Named("http"),
		started:    time.Now(),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/cron", s.handleCron)
	mux.HandleFunc("GET /api/activity", s.handleActivity)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleRun)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", observability.Handler())

	return mux
}

// cronResponse flattens the summary into the envelope.
type cronResponse struct {
	Success bool `json:"success"`
	*domain.PassSummary
}

func (s *Server) handleCron(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.cronSecret == "" {
		s.logger.Error("trigger rejected: CRON_SECRET not configured")
		writeError(w, http.StatusInternalServerError, "CRON_SECRET not configured")
		return
	}
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	summary, err := s.runner.Run(r.Context(), "http")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if summary.TotalWallets == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"message":   "No active wallets to process",
			"processed": 0,
		})
		return
	}
	writeJSON(w, http.StatusOK, cronResponse{Success: true, PassSummary: summary})
}

func (s *Server) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cronSecret)) == 1
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	feed := domain.ActivityFeed(r.URL.Query().Get("type"))
	switch feed {
	case "":
		feed = domain.FeedAll
	case domain.FeedAll, domain.FeedBuy, domain.FeedClaim:
	default:
		writeError(w, http.StatusBadRequest, "type must be one of all, buy, claim")
		return
	}

	limit, err := parseLimit(r, defaultActivityLimit, maxActivityLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.activity.List(r.Context(), domain.ActivityFilter{
		Feed:          feed,
		ExcludeFailed: true,
		Limit:         limit,
	})
	if err != nil {
		s.logger.Error("list activity failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load activity")
		return
	}
	if records == nil {
		records = []*domain.ActivityRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"activities": records,
		"count":      len(records),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run history disabled")
		return
	}
	limit, err := parseLimit(r, defaultRunsLimit, maxRunsLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runs, err := s.runs.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load runs")
		return
	}
	if runs == nil {
		runs = []*domain.PassSummary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"runs":    runs,
		"count":   len(runs),
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run history disabled")
		return
	}
	run, err := s.runs.GetPass(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, cronResponse{Success: true, PassSummary: run})
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status   string              `json:"status"`
	Uptime   string              `json:"uptime"`
	Started  time.Time           `json:"started"`
	InFlight int                 `json:"passes_in_flight"`
	LastPass *domain.PassSummary `json:"last_pass,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Status:   "running",
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Started:  s.started.UTC(),
		InFlight: s.runner.InFlight(),
	}
	if last := s.runner.LastSummary(); last != nil {
		trimmed := *last
		trimmed.Results = nil
		resp.LastPass = &trimmed
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, maxLimit), nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
