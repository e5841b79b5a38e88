package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/donizo/material-scraper/internal/config"
)

// StaticOptions tunes the plain-HTTP engine.
type StaticOptions struct {
	Timeout           time.Duration
	UserAgent         string
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerSecond float64
}

// DefaultStaticOptions returns conservative defaults.
func DefaultStaticOptions() *StaticOptions {
	return &StaticOptions{
		Timeout:           30 * time.Second,
		UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		MaxRetries:        3,
		RetryDelay:        2 * time.Second,
		RequestsPerSecond: 2,
	}
}

// StaticEngine fetches listing pages over plain HTTP. It can follow
// next-page links but cannot drive load-more or scroll-triggered content.
type StaticEngine struct {
	client     *http.Client
	limiter    *rate.Limiter
	userAgent  string
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewStaticEngine builds an HTTP engine with a tuned transport and a
// transport-level request rate cap.
func NewStaticEngine(opts *StaticOptions) *StaticEngine {
	if opts == nil {
		opts = DefaultStaticOptions()
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &StaticEngine{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		userAgent:  opts.UserAgent,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		logger:     slog.Default().With("component", "static_engine"),
	}
}

func (e *StaticEngine) Fetch(ctx context.Context, rawurl string) (Page, error) {
	var lastErr error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			delay := e.retryDelay * time.Duration(1<<(attempt-1))
			e.logger.Debug("retrying fetch", "url", rawurl, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, retryable, err := e.get(ctx, rawurl)
		if err == nil {
			return NewPage(rawurl, body)
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return nil, &Error{URL: rawurl, Err: lastErr}
}

func (e *StaticEngine) get(ctx context.Context, rawurl string) (body string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return "", false, err
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError,
		resp.StatusCode == http.StatusTooManyRequests:
		return "", true, fmt.Errorf("http status %d", resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return "", false, fmt.Errorf("http status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, err
	}
	return string(raw), false, nil
}

func (e *StaticEngine) Advance(ctx context.Context, p Page, step Step) (Page, error) {
	switch step.Mode {
	case config.ModePaged:
		href, ok := p.Attr(step.NextSelector, "href")
		if !ok || href == "" {
			return nil, ErrNoFurtherPages
		}
		next, err := resolveHref(p.URL(), href)
		if err != nil {
			return nil, &Error{URL: href, Err: err}
		}
		return e.Fetch(ctx, next)
	case config.ModeNone:
		return nil, ErrNoFurtherPages
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, step.Mode)
	}
}

func (e *StaticEngine) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func resolveHref(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse next href: %w", err)
	}
	if base == nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}
