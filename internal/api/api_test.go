package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/maltedev/promo-crawler/internal/cache"
	"github.com/maltedev/promo-crawler/internal/crawler"
	"github.com/maltedev/promo-crawler/internal/database"
	"github.com/maltedev/promo-crawler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCrawler struct {
	release chan struct{}
	err     error
}

func (f *fakeCrawler) Run(ctx context.Context, runID string) (*crawler.Report, error) {
	if f.release != nil {
		<-f.release
	}
	return &crawler.Report{
		RunID:   runID,
		Summary: crawler.Summary{RunID: runID, TotalProducts: 46, Failures: 1},
	}, f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	runIDs []string
}

func (f *fakePublisher) PublishRun(ctx context.Context, runID string, summary any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runIDs = append(f.runIDs, runID)
	return nil
}

type fakeReader struct {
	snapshot *models.Snapshot
	err      error
}

func (f fakeReader) Latest(ctx context.Context, key models.TimeframeKey) (*models.Snapshot, error) {
	return f.snapshot, f.err
}

func do(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestRunLifecycle(t *testing.T) {
	fc := &fakeCrawler{release: make(chan struct{})}
	pub := &fakePublisher{}
	runner := NewRunner(context.Background(), fc, pub, nil)
	router := NewRouter(NewHandlers(runner, nil))

	rec, body := do(t, router, http.MethodPost, "/api/v1/runs")
	require.Equal(t, http.StatusAccepted, rec.Code)
	runID, _ := body["run_id"].(string)
	require.NotEmpty(t, runID)
	assert.Equal(t, RunStatusRunning, body["status"])

	rec, _ = do(t, router, http.MethodPost, "/api/v1/runs")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, body = do(t, router, http.MethodGet, "/api/v1/runs/"+runID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, RunStatusRunning, body["status"])

	close(fc.release)
	runner.Wait()

	rec, body = do(t, router, http.MethodGet, "/api/v1/runs/"+runID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, RunStatusCompleted, body["status"])
	summary, ok := body["summary"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(46), summary["total_products"])
	assert.Equal(t, float64(1), summary["failures"])
	assert.Equal(t, []string{runID}, pub.runIDs)

	// a new run may start once the previous one finished
	rec, _ = do(t, router, http.MethodPost, "/api/v1/runs")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	runner.Wait()
}

func TestRunFailure(t *testing.T) {
	runner := NewRunner(context.Background(), &fakeCrawler{err: errors.New("discovery failed")}, nil, nil)

	run, err := runner.Start()
	require.NoError(t, err)
	runner.Wait()

	got, err := runner.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "discovery failed", got.Error)
	assert.NotNil(t, got.FinishedAt)
}

func TestGetRunNotFound(t *testing.T) {
	router := NewRouter(NewHandlers(NewRunner(context.Background(), &fakeCrawler{}, nil, nil), nil))

	rec, body := do(t, router, http.MethodGet, "/api/v1/runs/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "run not found", body["error"])
}

func TestGetSnapshot(t *testing.T) {
	snapshot := &models.Snapshot{
		RunID:    "run-7",
		Window:   models.TimeframeWindow{Key: models.TimeframeCurrent},
		Products: []*models.NormalizedProduct{{ID: "p1", ChildProducts: []*models.NormalizedProduct{}}},
	}

	tests := []struct {
		name       string
		path       string
		readers    []SnapshotReader
		wantStatus int
		wantRunID  string
	}{
		{
			name:       "cache hit",
			path:       "/api/v1/snapshots/current",
			readers:    []SnapshotReader{fakeReader{snapshot: snapshot}},
			wantStatus: http.StatusOK,
			wantRunID:  "run-7",
		},
		{
			name: "falls through to database",
			path: "/api/v1/snapshots/current",
			readers: []SnapshotReader{
				fakeReader{err: cache.ErrNotFound},
				fakeReader{snapshot: snapshot},
			},
			wantStatus: http.StatusOK,
			wantRunID:  "run-7",
		},
		{
			name: "reader error is skipped",
			path: "/api/v1/snapshots/current",
			readers: []SnapshotReader{
				fakeReader{err: errors.New("connection refused")},
				fakeReader{snapshot: snapshot},
			},
			wantStatus: http.StatusOK,
			wantRunID:  "run-7",
		},
		{
			name: "nothing stored",
			path: "/api/v1/snapshots/upcoming",
			readers: []SnapshotReader{
				fakeReader{err: cache.ErrNotFound},
				fakeReader{err: database.ErrSnapshotNotFound},
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "no readers",
			path:       "/api/v1/snapshots/upcoming",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "invalid timeframe",
			path:       "/api/v1/snapshots/yesterday",
			readers:    []SnapshotReader{fakeReader{snapshot: snapshot}},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := NewRunner(context.Background(), &fakeCrawler{}, nil, nil)
			router := NewRouter(NewHandlers(runner, nil, tt.readers...))

			rec, body := do(t, router, http.MethodGet, tt.path)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantRunID != "" {
				assert.Equal(t, tt.wantRunID, body["run_id"])
			}
		})
	}
}

func TestHealth(t *testing.T) {
	router := NewRouter(NewHandlers(NewRunner(context.Background(), &fakeCrawler{}, nil, nil), nil))

	rec, body := do(t, router, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}
