package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/maltedev/promo-crawler/internal/models"
)

const maxBodyBytes = 10 << 20

// ErrNetwork marks transport failures: DNS, connection, TLS or timeout.
var ErrNetwork = errors.New("network error")

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// HTTPFetcher performs stateless GETs on behalf of a captured identity.
type HTTPFetcher struct {
	client *http.Client
	logger *slog.Logger
}

func NewHTTPFetcher(logger *slog.Logger) *HTTPFetcher {
	return NewHTTPFetcherWithClient(&http.Client{}, logger)
}

func NewHTTPFetcherWithClient(client *http.Client, logger *slog.Logger) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{
		client: client,
		logger: logger.With("component", "http_fetcher"),
	}
}

// Get fetches url with the identity's cookies and user agent. A timeout
// only bounds this request.
func (f *HTTPFetcher) Get(ctx context.Context, url string, identity *models.RequestIdentity, timeout time.Duration) (int, []byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	Apply(req, identity)

	f.logger.Debug("fetching", "url", url)
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: failed to read body: %v", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, body, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	return resp.StatusCode, body, nil
}

// Apply sets the identity's user agent and the cookies that match the
// request host.
func Apply(req *http.Request, identity *models.RequestIdentity) {
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if identity == nil {
		return
	}
	if identity.UserAgent != "" {
		req.Header.Set("User-Agent", identity.UserAgent)
	}

	host := req.URL.Hostname()
	for _, c := range identity.Cookies {
		if c.MatchesHost(host) {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
}
