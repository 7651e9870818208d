package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/receipts-redactor/constants"
	"github.com/joseph-ayodele/receipts-redactor/internal/async"
	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/pipeline"
	"github.com/joseph-ayodele/receipts-redactor/internal/repository"
	"github.com/joseph-ayodele/receipts-redactor/internal/utils"
)

// StatsSource reports the daemon's lifetime counters.
type StatsSource interface {
	Stats() pipeline.StatsSnapshot
}

// JobQueue accepts files for asynchronous processing.
type JobQueue interface {
	Enqueue(ctx context.Context, job async.Job) error
}

// Ledger is the read side of the run ledger.
type Ledger interface {
	List(ctx context.Context, f repository.Filter) ([]pipeline.Outcome, error)
	Stats(ctx context.Context, runID string) (pipeline.StatsSnapshot, error)
}

// API is the HTTP surface of the daemon.
type API struct {
	router chi.Router
	stats  StatsSource
	jobs   JobQueue
	ledger Ledger
	inbox  string
	logger *slog.Logger
}

type APIOption func(*API)

// WithLedger exposes recorded outcomes under /v1/outcomes.
func WithLedger(l Ledger) APIOption { return func(a *API) { a.ledger = l } }

// NewAPI builds the router. Jobs may only reference files under inbox.
func NewAPI(stats StatsSource, jobs JobQueue, inbox string, logger *slog.Logger, opts ...APIOption) *API {
	if logger == nil {
		logger = slog.Default()
	}
	a := &API{stats: stats, jobs: jobs, inbox: inbox, logger: logger}
	for _, o := range opts {
		o(a)
	}
	a.setupRoutes()
	return a
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *API) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger(a.logger))

	r.Get("/healthz", a.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/stats", a.handleStats)
		r.Post("/jobs", a.handleSubmitJob)
		if a.ledger != nil {
			r.Get("/outcomes", a.handleListOutcomes)
		}
	})

	a.router = r
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"daemon": a.stats.Stats()}
	if a.ledger != nil {
		ls, err := a.ledger.Stats(r.Context(), r.URL.Query().Get("run_id"))
		if err != nil {
			a.logger.Error("ledger stats failed", "error", err)
			jsonError(w, "ledger unavailable", http.StatusInternalServerError)
			return
		}
		resp["ledger"] = ls
	}
	writeJSON(w, http.StatusOK, resp)
}

type submitJobRequest struct {
	Path string `json:"path"`
}

func (a *API) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}
	path, err := a.resolveJobPath(strings.TrimSpace(req.Path))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, common.ErrNotFound) {
			status = http.StatusNotFound
		}
		jsonError(w, err.Error(), status)
		return
	}

	job := async.Job{Path: path, Root: a.inbox, SubmittedAt: time.Now()}
	if err := a.jobs.Enqueue(r.Context(), job); err != nil {
		if errors.Is(err, async.ErrQueueClosed) {
			jsonError(w, "daemon is shutting down", http.StatusServiceUnavailable)
			return
		}
		jsonError(w, "enqueue failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	a.logger.Info("job accepted", "path", path, "req_id", middleware.GetReqID(r.Context()))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "path": path})
}

// resolveJobPath accepts absolute paths or paths relative to the inbox. The
// result must be a supported file inside the inbox.
func (a *API) resolveJobPath(p string) (string, error) {
	if p == "" {
		return "", common.WrapError(common.ErrInvalidInput, "path is required")
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(a.inbox, p)
	}
	p = filepath.Clean(p)
	if _, err := utils.RelParts(a.inbox, p); err != nil {
		return "", common.WrapError(common.ErrInvalidInput, "path must be inside the inbox")
	}
	if _, ok := constants.AllowedExtensions[constants.NormalizeExt(filepath.Ext(p))]; !ok {
		return "", common.WrapError(common.ErrInvalidInput, "unsupported file type "+filepath.Ext(p))
	}
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", common.WrapError(common.ErrNotFound, p)
	}
	return p, nil
}

func (a *API) handleListOutcomes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.Filter{
		RunID: q.Get("run_id"),
		State: constants.FileState(strings.ToUpper(q.Get("state"))),
		Limit: 100,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		f.Limit = n
	}
	outcomes, err := a.ledger.List(r.Context(), f)
	if err != nil {
		a.logger.Error("ledger list failed", "error", err)
		jsonError(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}
	if outcomes == nil {
		outcomes = []pipeline.Outcome{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcomes": outcomes})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
