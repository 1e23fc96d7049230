// Package session carries the authenticated state of a rendering session
// over to a plain HTTP client.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/promo-crawler/internal/models"
)

var ErrNoUserAgent = errors.New("user agent is required")

// CookieSource is a live rendering session that can hand out its cookies.
type CookieSource interface {
	Cookies(ctx context.Context) ([]models.Cookie, error)
}

// Bridge captures request identities. The user agent must be the one the
// renderer advertises, otherwise the site sees two different clients.
type Bridge struct {
	userAgent string
	now       func() time.Time
	logger    *slog.Logger
}

func NewBridge(userAgent string, logger *slog.Logger) (*Bridge, error) {
	if userAgent == "" {
		return nil, ErrNoUserAgent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		userAgent: userAgent,
		now:       time.Now,
		logger:    logger.With("component", "session_bridge"),
	}, nil
}

// Capture reads the cookie jar of src. It must run after the listing has
// been rendered and before the session is closed.
func (b *Bridge) Capture(ctx context.Context, src CookieSource, timeframe models.TimeframeKey) (*models.RequestIdentity, error) {
	cookies, err := src.Cookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture session cookies: %w", err)
	}

	b.logger.Info("captured session cookies", "timeframe", timeframe, "count", len(cookies))

	return &models.RequestIdentity{
		Timeframe:  timeframe,
		Cookies:    cookies,
		UserAgent:  b.userAgent,
		CapturedAt: b.now(),
	}, nil
}
