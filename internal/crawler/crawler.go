// Package crawler coordinates a full crawl: timeframe discovery, one worker
// per timeframe, child-page expansion and aggregation of the results.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/promo-crawler/internal/discovery"
	"github.com/maltedev/promo-crawler/internal/expand"
	"github.com/maltedev/promo-crawler/internal/models"
	"github.com/maltedev/promo-crawler/internal/normalize"
	"github.com/maltedev/promo-crawler/internal/parser"
	"github.com/maltedev/promo-crawler/internal/scroll"
	"github.com/maltedev/promo-crawler/internal/session"
	"golang.org/x/sync/errgroup"
)

var ErrDiscovery = errors.New("timeframe discovery failed")

// Renderer is a stateful browser session used for one page pass.
type Renderer interface {
	scroll.Renderer
	discovery.Page
	session.CookieSource
	Close() error
}

type SessionFactory interface {
	NewSession(ctx context.Context) (Renderer, error)
}

type SessionFactoryFunc func(ctx context.Context) (Renderer, error)

func (f SessionFactoryFunc) NewSession(ctx context.Context) (Renderer, error) {
	return f(ctx)
}

// Sink receives the snapshot of every timeframe that completed.
type Sink interface {
	WriteSnapshot(ctx context.Context, snapshot *models.Snapshot) error
}

type Options struct {
	InitialURL string
	BrowseURL  string
	BaseURL    string
	UserAgent  string

	MaxScrolls  int
	SettleDelay time.Duration

	ChildWorkers      int
	ChildRequestDelay time.Duration
	ChildTimeout      time.Duration

	// TimeframeTimeout bounds one timeframe worker end to end; zero disables it.
	TimeframeTimeout time.Duration

	Now func() time.Time
}

type Orchestrator struct {
	sessions   SessionFactory
	discoverer *discovery.Discoverer
	stabilizer *scroll.Stabilizer
	extractor  *parser.Extractor
	normalizer *normalize.Normalizer
	bridge     *session.Bridge
	expander   *expand.Expander
	sinks      []Sink
	opts       Options
	logger     *slog.Logger
}

func New(opts Options, sessions SessionFactory, fetcher expand.Fetcher, logger *slog.Logger, sinks ...Sink) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxScrolls < 1 {
		return nil, fmt.Errorf("max scrolls must be at least 1")
	}

	normalizer, err := normalize.New(opts.BaseURL, normalize.WithClock(opts.Now))
	if err != nil {
		return nil, err
	}

	bridge, err := session.NewBridge(opts.UserAgent, logger)
	if err != nil {
		return nil, err
	}

	extractor := parser.NewExtractor()

	return &Orchestrator{
		sessions:   sessions,
		discoverer: discovery.New(opts.BrowseURL, normalizer, logger),
		stabilizer: scroll.NewStabilizer(logger),
		extractor:  extractor,
		normalizer: normalizer,
		bridge:     bridge,
		expander: expand.New(fetcher, extractor, normalizer, expand.Options{
			Workers:      opts.ChildWorkers,
			RequestDelay: opts.ChildRequestDelay,
			Timeout:      opts.ChildTimeout,
		}, logger),
		sinks:  sinks,
		opts:   opts,
		logger: logger.With("component", "orchestrator"),
	}, nil
}

// Run performs one crawl. The returned report is never nil. An error is
// returned only when discovery fails, in which case there is no output.
func (o *Orchestrator) Run(ctx context.Context, runID string) (*Report, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	start := o.opts.Now()
	logger := o.logger.With("run_id", runID)
	report := &Report{RunID: runID, State: StateDiscovering, StartedAt: start}

	logger.Info("crawl started", "url", o.opts.InitialURL)

	windows, err := o.discover(ctx)
	if err != nil {
		logger.Error("timeframe discovery failed", "error", err)
		report.finish(o.opts.Now(), err)
		return report, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	report.Results = make([]*TimeframeResult, len(windows))

	var g errgroup.Group
	g.SetLimit(len(windows))
	for i, window := range windows {
		g.Go(func() error {
			report.Results[i] = o.runTimeframe(ctx, runID, window)
			return nil
		})
	}
	_ = g.Wait()

	report.State = StateAggregating
	o.publish(ctx, runID, report.Results)

	report.finish(o.opts.Now(), nil)
	logger.Info("crawl finished",
		"total_products", report.Summary.TotalProducts,
		"failures", report.Summary.Failures,
		"duration", report.Summary.Duration)

	return report, nil
}

func (o *Orchestrator) discover(ctx context.Context) (windows []models.TimeframeWindow, err error) {
	r, err := o.sessions.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open discovery session: %w", err)
	}
	defer closeRenderer(r, o.logger)

	return o.discoverer.Discover(ctx, r, o.opts.InitialURL)
}

// runTimeframe never returns an error; failures end in StateFailed with an
// empty product list.
func (o *Orchestrator) runTimeframe(ctx context.Context, runID string, window models.TimeframeWindow) (result *TimeframeResult) {
	result = &TimeframeResult{Window: window, State: StateRendering}
	logger := o.logger.With("run_id", runID, "timeframe", window.Key)

	defer func() {
		if r := recover(); r != nil {
			result.fail(fmt.Errorf("timeframe worker panicked: %v", r))
			logger.Error("timeframe failed", "stage", result.FailedIn, "error", result.Err)
		}
	}()

	if o.opts.TimeframeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.TimeframeTimeout)
		defer cancel()
	}

	products, err := o.crawlTimeframe(ctx, window, result, logger)
	if err != nil {
		result.fail(err)
		logger.Error("timeframe failed", "stage", result.FailedIn, "error", err)
		return result
	}

	result.Products = products
	result.State = StateDone
	parents, children := models.CountProducts(products)
	logger.Info("timeframe done", "parents", parents, "children", children)
	return result
}

func (o *Orchestrator) crawlTimeframe(ctx context.Context, window models.TimeframeWindow, result *TimeframeResult, logger *slog.Logger) ([]*models.NormalizedProduct, error) {
	result.State = StateRendering
	r, err := o.sessions.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	release := onceCloser(r, logger)
	defer release()

	if err := r.Load(ctx, window.URL); err != nil {
		return nil, err
	}
	if err := r.WaitFor(ctx, parser.TileSelector); err != nil {
		return nil, fmt.Errorf("products did not render: %w", err)
	}

	result.State = StateStabilizing
	iterations, err := o.stabilizer.Stabilize(ctx, r, o.opts.MaxScrolls, o.opts.SettleDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to load all products: %w", err)
	}
	result.Scrolls = iterations

	result.State = StateExtracting
	html, err := r.Content(ctx)
	if err != nil {
		return nil, err
	}
	raws, err := o.extractor.ExtractHTML(html)
	if err != nil {
		return nil, err
	}
	result.Tiles = len(raws)

	result.State = StateNormalizing
	products := o.normalizer.Process(raws, window)
	logger.Info("normalized products", "tiles", len(raws), "products", len(products))

	result.State = StateBridgingSession
	identity, err := o.bridge.Capture(ctx, r, window.Key)
	if err != nil {
		return nil, err
	}
	// the identity outlives the renderer only for this pass
	release()

	result.State = StateExpandingChildren
	products, result.Children = o.expander.Expand(ctx, products, identity)

	return products, nil
}

// publish hands every completed timeframe to the sinks. A failing sink is
// logged and does not affect the other sinks or timeframes.
func (o *Orchestrator) publish(ctx context.Context, runID string, results []*TimeframeResult) {
	for _, result := range results {
		if result == nil || result.State != StateDone {
			continue
		}
		snapshot := &models.Snapshot{
			RunID:      runID,
			Window:     result.Window,
			Products:   result.Products,
			CapturedAt: o.opts.Now(),
		}
		for _, sink := range o.sinks {
			if err := sink.WriteSnapshot(ctx, snapshot); err != nil {
				o.logger.Error("failed to write snapshot",
					"run_id", runID, "timeframe", result.Window.Key, "error", err)
			}
		}
	}
}

func onceCloser(r Renderer, logger *slog.Logger) func() {
	closed := false
	return func() {
		if closed {
			return
		}
		closed = true
		closeRenderer(r, logger)
	}
}

func closeRenderer(r Renderer, logger *slog.Logger) {
	if err := r.Close(); err != nil {
		logger.Warn("failed to close renderer", "error", err)
	}
}
