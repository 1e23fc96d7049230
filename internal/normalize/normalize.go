// Package normalize converts raw extracted tile fields into canonical,
// typed product fields. All functions are pure apart from the clock used to
// pick the calendar year of a date range.
package normalize

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/maltedev/promo-crawler/internal/models"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

type Normalizer struct {
	baseURL *url.URL
	now     func() time.Time
	logger  *slog.Logger
}

type Option func(*Normalizer)

// WithClock overrides the clock that decides the year of parsed dates.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

func New(baseURL string, opts ...Option) (*Normalizer, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url must be absolute: %q", baseURL)
	}

	n := &Normalizer{
		baseURL: base,
		now:     time.Now,
		logger:  slog.Default().With("component", "normalizer"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Process normalizes raw records for one timeframe. Records without an id
// are dropped, as are later duplicates of an id already seen.
func (n *Normalizer) Process(raws []models.RawProductRecord, window models.TimeframeWindow) []*models.NormalizedProduct {
	products := make([]*models.NormalizedProduct, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))

	for _, raw := range raws {
		product, ok := n.Normalize(raw, window)
		if !ok {
			continue
		}
		if _, dup := seen[product.ID]; dup {
			n.logger.Debug("dropping duplicate product", "id", product.ID, "timeframe", window.Key)
			continue
		}
		seen[product.ID] = struct{}{}
		products = append(products, product)
	}

	return products
}

// Normalize converts a single record. It returns false when the record
// carries no usable id.
func (n *Normalizer) Normalize(raw models.RawProductRecord, window models.TimeframeWindow) (*models.NormalizedProduct, bool) {
	id, ok := Text(raw.ID)
	if !ok {
		return nil, false
	}

	return &models.NormalizedProduct{
		ID:            id,
		Brand:         optional(Text(raw.Brand)),
		Title:         optional(Text(raw.Name)),
		Description:   optional(Text(raw.Description)),
		Promotion:     optional(Text(raw.Promotion)),
		PriceNow:      optional(Price(raw.PriceNowRaw)),
		PriceWas:      optional(Price(raw.PriceWasRaw)),
		ImageURL:      optional(n.URL(raw.ImageURL)),
		SourceURL:     optional(n.URL(raw.SourceURL)),
		ChildPageURL:  optional(n.URL(raw.ChildPageURL)),
		StartDate:     copyDate(window.StartDate),
		EndDate:       copyDate(window.EndDate),
		ChildProducts: []*models.NormalizedProduct{},
	}, true
}

// Text collapses whitespace runs and trims. Unknown or blank input is absent.
func Text(f models.Field) (string, bool) {
	value, ok := f.Get()
	if !ok {
		return "", false
	}
	return CleanText(value)
}

func CleanText(s string) (string, bool) {
	cleaned := strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
	if cleaned == "" {
		return "", false
	}
	return cleaned, true
}

// URL resolves a possibly relative reference against the site base URL.
func (n *Normalizer) URL(f models.Field) (string, bool) {
	value, ok := Text(f)
	if !ok {
		return "", false
	}

	ref, err := url.Parse(value)
	if err != nil {
		return "", false
	}
	return n.baseURL.ResolveReference(ref).String(), true
}

func optional(value string, ok bool) *string {
	if !ok {
		return nil
	}
	return &value
}

func copyDate(d *models.Date) *models.Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
