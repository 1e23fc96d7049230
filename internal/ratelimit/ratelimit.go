package ratelimit

import (
	"context"
	"math/rand"
	"time"
)

type Waiter interface {
	Wait(ctx context.Context) error
}

// Pacer delays each caller independently. Unlike a shared limiter it does not
// serialize callers, so N concurrent workers issue roughly N requests per
// delay period.
type Pacer struct {
	delay  time.Duration
	jitter time.Duration
}

func NewPacer(delay, jitter time.Duration) *Pacer {
	return &Pacer{
		delay:  delay,
		jitter: jitter,
	}
}

func (p *Pacer) Wait(ctx context.Context) error {
	d := p.calculateDelay()
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

func (p *Pacer) calculateDelay() time.Duration {
	if p.jitter <= 0 {
		return p.delay
	}
	return p.delay + time.Duration(rand.Int63n(int64(p.jitter)))
}
