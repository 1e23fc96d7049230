package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/promo-crawler/internal/models"
	"github.com/playwright-community/playwright-go"
)

var ErrUnexpectedResult = errors.New("unexpected evaluate result")

var cookieBannerSelectors = []string{
	"#onetrust-accept-btn-handler",
	`[class*="cookie"] button`,
}

// Session is a single rendering session: one browser context with one page.
type Session struct {
	context   playwright.BrowserContext
	page      playwright.Page
	timeout   time.Duration
	userAgent string
	logger    *slog.Logger
}

// Load navigates to url and dismisses the cookie banner when one shows up.
func (s *Session) Load(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Info("loading page", "url", url)
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	s.dismissCookieBanner()
	return nil
}

func (s *Session) dismissCookieBanner() {
	for _, selector := range cookieBannerSelectors {
		button := s.page.Locator(selector).First()
		count, err := button.Count()
		if err != nil || count == 0 {
			continue
		}
		if err := button.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(2000)}); err != nil {
			s.logger.Debug("failed to click cookie banner", "selector", selector, "error", err)
			continue
		}
		s.logger.Debug("cookie banner dismissed", "selector", selector)
		time.Sleep(time.Second)
		return
	}
}

// WaitFor blocks until selector is attached or the page timeout expires.
func (s *Session) WaitFor(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(s.timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("failed to wait for %s: %w", selector, err)
	}
	return nil
}

func (s *Session) Find(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	count, err := s.page.Locator(selector).Count()
	if err != nil {
		return false, fmt.Errorf("failed to locate %s: %w", selector, err)
	}
	return count > 0, nil
}

func (s *Session) ScrollIntoView(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	found, err := s.page.Evaluate(`(sel) => {
		const el = document.querySelector(sel);
		if (!el) return false;
		el.scrollIntoView(false);
		return true;
	}`, selector)
	if err != nil {
		return fmt.Errorf("failed to scroll %s into view: %w", selector, err)
	}
	if ok, _ := found.(bool); !ok {
		return fmt.Errorf("element %s not found", selector)
	}
	return nil
}

func (s *Session) ScrollBy(ctx context.Context, dx, dy int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.page.Evaluate(`([dx, dy]) => window.scrollBy(dx, dy)`, []int{dx, dy}); err != nil {
		return fmt.Errorf("failed to scroll by %d,%d: %w", dx, dy, err)
	}
	return nil
}

func (s *Session) Height(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	result, err := s.page.Evaluate(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, fmt.Errorf("failed to read page height: %w", err)
	}
	return toInt(result)
}

// Content returns the current DOM serialized as HTML. Checkbox state is
// mirrored into the checked attribute first so static parsers see it.
func (s *Session) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := s.page.Evaluate(`() => document.querySelectorAll('input[type=checkbox], input[type=radio]').forEach(
		(el) => el.checked ? el.setAttribute('checked', '') : el.removeAttribute('checked'))`); err != nil {
		s.logger.Debug("failed to sync checkbox state", "error", err)
	}
	html, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return html, nil
}

// Cookies returns the full cookie jar of the session's context.
func (s *Session) Cookies(ctx context.Context) ([]models.Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cookies, err := s.context.Cookies()
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	out := make([]models.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, models.Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain})
	}
	return out, nil
}

func (s *Session) UserAgent() string {
	return s.userAgent
}

func (s *Session) Close() error {
	var errs []error
	if err := s.page.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close page: %w", err))
	}
	if err := s.context.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close context: %w", err))
	}
	return errors.Join(errs...)
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnexpectedResult, v)
	}
}
