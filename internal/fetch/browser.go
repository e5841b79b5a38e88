package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/donizo/material-scraper/internal/config"
)

// BrowserOptions tunes the rendered-session engine.
type BrowserOptions struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	MaxRetries     int
}

// DefaultBrowserOptions returns the launch profile used when nothing is configured.
func DefaultBrowserOptions() *BrowserOptions {
	return &BrowserOptions{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Locale:         "fr-FR",
		MaxRetries:     3,
	}
}

// Browser owns one Playwright runtime shared by all traversal sessions.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *BrowserOptions
	logger  *slog.Logger
}

// NewBrowser launches a headless Chromium and a shared browser context.
func NewBrowser(opts *BrowserOptions) (*Browser, error) {
	if opts == nil {
		opts = DefaultBrowserOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(opts.UserAgent),
		Locale:    playwright.String(opts.Locale),
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: bctx,
		opts:    opts,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

// NewEngine opens a fresh tab. Each traversal worker gets its own session;
// a session is not safe for concurrent use.
func (b *Browser) NewEngine() (Engine, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))
	return &browserSession{
		page:       page,
		maxRetries: b.opts.MaxRetries,
		logger:     b.logger,
	}, nil
}

// Close tears down the context, browser, and runtime.
func (b *Browser) Close() error {
	if err := b.context.Close(); err != nil {
		b.logger.Warn("close browser context", "error", err)
	}
	if err := b.browser.Close(); err != nil {
		b.logger.Warn("close browser", "error", err)
	}
	return b.pw.Stop()
}

// browserSession drives one tab through a category traversal.
type browserSession struct {
	page       playwright.Page
	maxRetries int
	logger     *slog.Logger
}

func (s *browserSession) Fetch(ctx context.Context, rawurl string) (Page, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if attempt > 0 {
			s.logger.Debug("retrying navigation", "url", rawurl, "attempt", attempt)
			s.page.WaitForTimeout(float64(attempt) * 1000)
		}
		_, err := s.page.Goto(rawurl, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		})
		if err == nil {
			s.page.WaitForTimeout(800)
			return s.snapshot()
		}
		lastErr = err
	}
	return nil, &Error{URL: rawurl, Err: lastErr}
}

func (s *browserSession) Advance(ctx context.Context, p Page, step Step) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch step.Mode {
	case config.ModePaged:
		if err := s.click(step.NextSelector); err != nil {
			return nil, err
		}
		if err := s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State: playwright.LoadStateNetworkidle,
		}); err != nil {
			s.logger.Debug("wait for load state", "error", err)
		}
		return s.snapshot()

	case config.ModeLoadMore:
		if err := s.click(step.LoadMoreSelector); err != nil {
			return nil, err
		}
		s.page.WaitForTimeout(600)
		return s.snapshot()

	case config.ModeInfiniteScroll:
		steps := step.ScrollSteps
		if steps < 1 {
			steps = 1
		}
		wait := step.ScrollWait
		if wait < 100*time.Millisecond {
			wait = 100 * time.Millisecond
		}
		for i := 0; i < steps; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := s.page.Mouse().Wheel(0, 4000); err != nil {
				return nil, &Error{URL: s.page.URL(), Err: err}
			}
			s.page.WaitForTimeout(float64(wait.Milliseconds()))
		}
		return s.snapshot()

	case config.ModeNone:
		return nil, ErrNoFurtherPages

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, step.Mode)
	}
}

// click presses the paging control, or reports exhaustion when the control
// is absent, hidden, or disabled.
func (s *browserSession) click(selector string) error {
	if selector == "" {
		return ErrNoFurtherPages
	}

	btn := s.page.Locator(selector).First()
	count, err := btn.Count()
	if err != nil || count == 0 {
		return ErrNoFurtherPages
	}
	if visible, err := btn.IsVisible(); err != nil || !visible {
		return ErrNoFurtherPages
	}
	if enabled, err := btn.IsEnabled(); err != nil || !enabled {
		return ErrNoFurtherPages
	}
	if disabled, err := btn.GetAttribute("aria-disabled"); err == nil && disabled == "true" {
		return ErrNoFurtherPages
	}

	if err := btn.Click(); err != nil {
		return &Error{URL: s.page.URL(), Err: err}
	}
	return nil
}

func (s *browserSession) snapshot() (Page, error) {
	html, err := s.page.Content()
	if err != nil {
		return nil, &Error{URL: s.page.URL(), Err: err}
	}
	return NewPage(s.page.URL(), html)
}

func (s *browserSession) Close() error {
	return s.page.Close()
}
