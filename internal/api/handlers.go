package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/maltedev/promo-crawler/internal/cache"
	"github.com/maltedev/promo-crawler/internal/database"
	"github.com/maltedev/promo-crawler/internal/models"
)

// SnapshotReader returns the latest stored snapshot for a timeframe.
type SnapshotReader interface {
	Latest(ctx context.Context, key models.TimeframeKey) (*models.Snapshot, error)
}

type Handlers struct {
	runner    *Runner
	snapshots []SnapshotReader
	logger    *slog.Logger
}

// NewHandlers builds the handlers. Snapshot readers are consulted in order
// until one has the requested timeframe.
func NewHandlers(runner *Runner, logger *slog.Logger, snapshots ...SnapshotReader) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		runner:    runner,
		snapshots: snapshots,
		logger:    logger.With("component", "api"),
	}
}

type StartRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StartRun kicks off a crawl in the background.
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runner.Start()
	if errors.Is(err, ErrRunInProgress) {
		h.respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to start run", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to start run")
		return
	}

	h.respondJSON(w, http.StatusAccepted, StartRunResponse{
		RunID:  run.ID,
		Status: run.Status,
	})
}

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runner.Get(chi.URLParam(r, "runID"))
	if errors.Is(err, ErrRunNotFound) {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	h.respondJSON(w, http.StatusOK, run)
}

func (h *Handlers) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	key := models.TimeframeKey(chi.URLParam(r, "timeframe"))
	if !key.Valid() {
		h.respondError(w, http.StatusBadRequest, "timeframe must be current or upcoming")
		return
	}

	for _, reader := range h.snapshots {
		snapshot, err := reader.Latest(r.Context(), key)
		if err == nil {
			h.respondJSON(w, http.StatusOK, snapshot)
			return
		}
		if !isNotFound(err) {
			h.logger.Warn("snapshot lookup failed", "timeframe", key, "error", err)
		}
	}

	h.respondError(w, http.StatusNotFound, "no snapshot for timeframe")
}

func isNotFound(err error) bool {
	return errors.Is(err, cache.ErrNotFound) || errors.Is(err, database.ErrSnapshotNotFound)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
