// Package expand follows the child-page links of promotional products and
// attaches the bundled products found there.
package expand

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/maltedev/promo-crawler/internal/models"
	"github.com/maltedev/promo-crawler/internal/normalize"
	"github.com/maltedev/promo-crawler/internal/parser"
	"github.com/maltedev/promo-crawler/internal/ratelimit"
	"golang.org/x/sync/errgroup"
)

// Fetcher is a stateless transport. Child pages are server rendered, so no
// browser is involved.
type Fetcher interface {
	Get(ctx context.Context, url string, identity *models.RequestIdentity, timeout time.Duration) (int, []byte, error)
}

type Options struct {
	Workers      int
	RequestDelay time.Duration
	Timeout      time.Duration
}

type Stats struct {
	Parents  int
	Expanded int
	Empty    int
	Failed   int
	Children int
}

type Expander struct {
	fetcher    Fetcher
	extractor  *parser.Extractor
	normalizer *normalize.Normalizer
	pacer      ratelimit.Waiter
	opts       Options
	logger     *slog.Logger
}

func New(fetcher Fetcher, extractor *parser.Extractor, normalizer *normalize.Normalizer, opts Options, logger *slog.Logger) *Expander {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Expander{
		fetcher:    fetcher,
		extractor:  extractor,
		normalizer: normalizer,
		pacer:      ratelimit.NewPacer(opts.RequestDelay, 0),
		opts:       opts,
		logger:     logger.With("component", "child_expander"),
	}
}

// Expand fetches the child page of every parent that has one and appends the
// normalized children to that parent. Parents are returned in their original
// order; a failed child page leaves its parent untouched. Children of a
// child are never followed.
func (e *Expander) Expand(ctx context.Context, parents []*models.NormalizedProduct, identity *models.RequestIdentity) ([]*models.NormalizedProduct, Stats) {
	var stats Stats
	var expanded, empty, failed, children atomic.Int64

	var g errgroup.Group
	g.SetLimit(e.opts.Workers)

	seen := make(map[string]struct{})
	for _, parent := range parents {
		if !parent.HasChildPage() {
			continue
		}
		// one task per parent id, so each parent has a single appender
		if _, dup := seen[parent.ID]; dup {
			continue
		}
		seen[parent.ID] = struct{}{}
		stats.Parents++

		g.Go(func() error {
			found, err := e.expandOne(ctx, parent, identity)
			switch {
			case err != nil:
				failed.Add(1)
				e.logger.Error("child page failed", "parent_id", parent.ID, "url", *parent.ChildPageURL, "error", err)
			case len(found) == 0:
				empty.Add(1)
				e.logger.Warn("no products found on child page", "parent_id", parent.ID, "url", *parent.ChildPageURL)
			default:
				parent.AppendChildren(found)
				expanded.Add(1)
				children.Add(int64(len(found)))
				e.logger.Info("added child products", "parent_id", parent.ID, "count", len(found))
			}
			return nil
		})
	}

	if stats.Parents == 0 {
		e.logger.Info("no child urls to expand")
		return parents, stats
	}

	e.logger.Info("expanding child pages", "parents", stats.Parents, "workers", e.opts.Workers)
	_ = g.Wait()

	stats.Expanded = int(expanded.Load())
	stats.Empty = int(empty.Load())
	stats.Failed = int(failed.Load())
	stats.Children = int(children.Load())
	return parents, stats
}

// expandOne runs a single child task. Panics are turned into errors so one
// malformed page cannot take down its siblings.
func (e *Expander) expandOne(ctx context.Context, parent *models.NormalizedProduct, identity *models.RequestIdentity) (found []*models.NormalizedProduct, err error) {
	defer func() {
		if r := recover(); r != nil {
			found, err = nil, fmt.Errorf("child task panicked: %v", r)
		}
	}()

	if err := e.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	url := *parent.ChildPageURL
	_, body, err := e.fetcher.Get(ctx, url, identity, e.opts.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch child page: %w", err)
	}

	raws, err := e.extractor.ExtractReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse child page: %w", err)
	}

	window := models.TimeframeWindow{
		StartDate: parent.StartDate,
		EndDate:   parent.EndDate,
	}
	if identity != nil {
		window.Key = identity.Timeframe
	}
	return e.normalizer.Process(raws, window), nil
}
