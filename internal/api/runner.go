package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/promo-crawler/internal/crawler"
)

var (
	ErrRunInProgress = errors.New("a crawl run is already in progress")
	ErrRunNotFound   = errors.New("run not found")
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Crawler is satisfied by *crawler.Orchestrator.
type Crawler interface {
	Run(ctx context.Context, runID string) (*crawler.Report, error)
}

// Publisher announces finished runs, e.g. on a redis stream.
type Publisher interface {
	PublishRun(ctx context.Context, runID string, summary any) error
}

type Run struct {
	ID         string           `json:"run_id"`
	Status     string           `json:"status"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Summary    *crawler.Summary `json:"summary,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// Runner starts crawls in the background, one at a time, and remembers
// their outcome.
type Runner struct {
	crawler   Crawler
	publisher Publisher
	logger    *slog.Logger

	mu      sync.Mutex
	active  string
	runs    map[string]*Run
	baseCtx context.Context
	wg      sync.WaitGroup
}

func NewRunner(ctx context.Context, c Crawler, publisher Publisher, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		crawler:   c,
		publisher: publisher,
		logger:    logger.With("component", "runner"),
		runs:      make(map[string]*Run),
		baseCtx:   ctx,
	}
}

// Start launches a run and returns immediately.
func (r *Runner) Start() (Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != "" {
		return Run{}, ErrRunInProgress
	}

	run := &Run{
		ID:        uuid.NewString(),
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	r.runs[run.ID] = run
	r.active = run.ID

	r.wg.Add(1)
	go r.execute(run.ID)

	return *run, nil
}

func (r *Runner) execute(runID string) {
	defer r.wg.Done()

	logger := r.logger.With("run_id", runID)
	logger.Info("run started")

	report, err := r.crawler.Run(r.baseCtx, runID)

	r.mu.Lock()
	run := r.runs[runID]
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = RunStatusCompleted
	if report != nil {
		summary := report.Summary
		run.Summary = &summary
	}
	if err != nil {
		run.Status = RunStatusFailed
		run.Error = err.Error()
	}
	r.active = ""
	snapshot := *run
	r.mu.Unlock()

	if err != nil {
		logger.Error("run failed", "error", err)
	} else {
		logger.Info("run completed",
			"total_products", snapshot.Summary.TotalProducts,
			"failures", snapshot.Summary.Failures)
	}

	if r.publisher != nil && snapshot.Summary != nil {
		if err := r.publisher.PublishRun(r.baseCtx, runID, snapshot.Summary); err != nil {
			logger.Warn("failed to publish run", "error", err)
		}
	}
}

func (r *Runner) Get(runID string) (Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[runID]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return *run, nil
}

// Wait blocks until all started runs have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
