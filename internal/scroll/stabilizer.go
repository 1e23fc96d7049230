// Package scroll drives an infinite-scroll listing until its height stops
// growing.
package scroll

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Renderer is the part of a rendering session the stabilizer needs.
type Renderer interface {
	Find(ctx context.Context, selector string) (bool, error)
	ScrollIntoView(ctx context.Context, selector string) error
	ScrollBy(ctx context.Context, dx, dy int) error
	Height(ctx context.Context) (int, error)
}

const (
	DefaultContainerSelector = "div.product-list.row"
	DefaultForwardNudge      = 200
	DefaultBackwardNudge     = 400
	DefaultStallLimit        = 3
)

type Stabilizer struct {
	ContainerSelector string
	ForwardNudge      int
	BackwardNudge     int
	StallLimit        int

	logger *slog.Logger
}

func NewStabilizer(logger *slog.Logger) *Stabilizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stabilizer{
		ContainerSelector: DefaultContainerSelector,
		ForwardNudge:      DefaultForwardNudge,
		BackwardNudge:     DefaultBackwardNudge,
		StallLimit:        DefaultStallLimit,
		logger:            logger.With("component", "scroll"),
	}
}

// Stabilize scrolls until the page height has been unchanged for StallLimit
// consecutive measurements or maxIterations is reached, and returns the number
// of iterations performed.
//
// While content keeps arriving the listing container is brought into view.
// Once the height stalls, or when the container cannot be found, the page is
// nudged instead: forward after the first stall, backward after the second,
// for lazy loaders that only fire on a change of scroll direction.
func (s *Stabilizer) Stabilize(ctx context.Context, r Renderer, maxIterations int, settle time.Duration) (int, error) {
	last, err := r.Height(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to measure page height: %w", err)
	}

	stalls := 0
	iterations := 0
	for iterations < maxIterations {
		if err := ctx.Err(); err != nil {
			return iterations, err
		}

		if err := s.step(ctx, r, stalls); err != nil {
			return iterations, err
		}

		if err := sleep(ctx, settle); err != nil {
			return iterations, err
		}

		height, err := r.Height(ctx)
		if err != nil {
			return iterations, fmt.Errorf("failed to measure page height: %w", err)
		}
		iterations++

		if height == last {
			stalls++
			if stalls >= s.StallLimit {
				s.logger.Info("page height stable, assuming all content loaded",
					"iterations", iterations, "height", height)
				return iterations, nil
			}
		} else {
			stalls = 0
		}
		last = height

		s.logger.Debug("scrolled", "iteration", iterations, "height", height, "stalls", stalls)
	}

	s.logger.Warn("scroll iteration cap reached", "iterations", iterations, "height", last)
	return iterations, nil
}

func (s *Stabilizer) step(ctx context.Context, r Renderer, stalls int) error {
	if stalls == 0 && s.scrollContainer(ctx, r) {
		return nil
	}

	dy := s.ForwardNudge
	if stalls >= 2 {
		dy = -s.BackwardNudge
	}
	if err := r.ScrollBy(ctx, 0, dy); err != nil {
		return fmt.Errorf("failed to scroll by %d: %w", dy, err)
	}
	return nil
}

// scrollContainer reports whether the container was found and scrolled to.
func (s *Stabilizer) scrollContainer(ctx context.Context, r Renderer) bool {
	found, err := r.Find(ctx, s.ContainerSelector)
	if err != nil {
		s.logger.Debug("container lookup failed, nudging instead", "error", err)
		return false
	}
	if !found {
		return false
	}
	if err := r.ScrollIntoView(ctx, s.ContainerSelector); err != nil {
		s.logger.Debug("scroll into view failed, nudging instead", "error", err)
		return false
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
