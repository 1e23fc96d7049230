// Package discovery finds the browsable promotion periods of the catalog.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/promo-crawler/internal/models"
	"github.com/maltedev/promo-crawler/internal/normalize"
)

const filterSelector = "input.filter-checkbox[data-document-location]"

var ErrControlsNotFound = errors.New("timeframe selector controls not found")

// Page is the slice of a rendering session discovery needs.
type Page interface {
	Load(ctx context.Context, url string) error
	WaitFor(ctx context.Context, selector string) error
	Content(ctx context.Context) (string, error)
}

type Discoverer struct {
	browseURL  string
	normalizer *normalize.Normalizer
	logger     *slog.Logger
}

// New returns a discoverer that rebuilds timeframe URLs on browseURL using
// the query string advertised by each selector control.
func New(browseURL string, normalizer *normalize.Normalizer, logger *slog.Logger) *Discoverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{
		browseURL:  strings.TrimRight(browseURL, "?"),
		normalizer: normalizer,
		logger:     logger.With("component", "discovery"),
	}
}

// Discover loads the listing and reads its timeframe filter. The checked
// control is the current window, the unchecked one the upcoming window.
func (d *Discoverer) Discover(ctx context.Context, page Page, initialURL string) ([]models.TimeframeWindow, error) {
	d.logger.Info("discovering timeframes", "url", initialURL)

	if err := page.Load(ctx, initialURL); err != nil {
		return nil, err
	}
	if err := page.WaitFor(ctx, filterSelector); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrControlsNotFound, err)
	}

	html, err := page.Content(ctx)
	if err != nil {
		return nil, err
	}

	windows, err := d.Parse(html)
	if err != nil {
		return nil, err
	}

	d.logger.Info("found timeframes", "count", len(windows))
	return windows, nil
}

// Parse reads the timeframe controls from a rendered listing.
func (d *Discoverer) Parse(html string) ([]models.TimeframeWindow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing: %w", err)
	}

	var current, upcoming *goquery.Selection
	doc.Find(filterSelector).Each(func(_ int, input *goquery.Selection) {
		_, checked := input.Attr("checked")
		switch {
		case checked && current == nil:
			current = input
		case !checked && upcoming == nil:
			upcoming = input
		}
	})

	var windows []models.TimeframeWindow
	for _, c := range []struct {
		key   models.TimeframeKey
		input *goquery.Selection
	}{
		{models.TimeframeCurrent, current},
		{models.TimeframeUpcoming, upcoming},
	} {
		if c.input == nil {
			d.logger.Warn("timeframe control missing", "timeframe", c.key)
			continue
		}
		window, err := d.window(doc, c.key, c.input)
		if err != nil {
			d.logger.Warn("skipping timeframe", "timeframe", c.key, "error", err)
			continue
		}
		windows = append(windows, window)
	}

	if len(windows) == 0 {
		return nil, ErrControlsNotFound
	}
	if len(windows) < 2 {
		d.logger.Warn("partial timeframe discovery", "found", len(windows), "timeframe", windows[0].Key)
	}
	return windows, nil
}

func (d *Discoverer) window(doc *goquery.Document, key models.TimeframeKey, input *goquery.Selection) (models.TimeframeWindow, error) {
	location, _ := input.Attr("data-document-location")
	target, err := d.resolve(location)
	if err != nil {
		return models.TimeframeWindow{}, err
	}

	window := models.TimeframeWindow{Key: key, URL: target}

	if id, ok := input.Attr("id"); ok && id != "" {
		label := labelFor(doc, id)
		window.StartDate, window.EndDate = d.normalizer.DateRange(label.Text())
		if window.StartDate == nil {
			d.logger.Warn("could not parse timeframe dates", "timeframe", key, "label", strings.TrimSpace(label.Text()))
		}
	}

	return window, nil
}

// resolve keeps only the query string of location and appends it to the
// browse URL.
func (d *Discoverer) resolve(location string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", fmt.Errorf("empty document location")
	}

	query := location
	if i := strings.LastIndex(location, "?"); i >= 0 {
		query = location[i+1:]
	}
	if _, err := url.ParseQuery(query); err != nil {
		return "", fmt.Errorf("invalid document location %q: %w", location, err)
	}
	return d.browseURL + "?" + query, nil
}

// labelFor compares the for attribute directly so ids never have to be
// escaped into a selector.
func labelFor(doc *goquery.Document, id string) *goquery.Selection {
	return doc.Find("label").FilterFunction(func(_ int, label *goquery.Selection) bool {
		forID, _ := label.Attr("for")
		return forID == id
	}).First()
}
