// Package pagination drives one category listing to completion as a bounded
// state machine. Non-termination on looping or stalling sites is structurally
// impossible: every traversal ends at the max-pages cap or the no-progress cap
// if nothing else stops it first.
package pagination

import (
	"context"
	"errors"
	"log/slog"

	"github.com/donizo/material-scraper/internal/config"
	"github.com/donizo/material-scraper/internal/fetch"
	"github.com/donizo/material-scraper/internal/ratelimit"
)

// State of the traversal machine.
type State int

const (
	StateInit State = iota
	StateLoading
	StateHasMore
	StateExhausted
	StateError
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateLoading:
		return "LOADING"
	case StateHasMore:
		return "HAS_MORE"
	case StateExhausted:
		return "EXHAUSTED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Options bound one traversal.
type Options struct {
	StartURL      string
	CardSelector  string
	Step          fetch.Step
	MaxPages      int
	NoProgressCap int
}

// traversal is the per-category state, discarded when the traversal ends.
type traversal struct {
	pageIndex  int
	seen       map[string]struct{}
	noProgress int
	state      State
}

// Driver yields a lazy, finite sequence of listing pages. It is restartable
// only by constructing a new Driver; there is no resume-from-middle.
type Driver struct {
	engine  fetch.Engine
	limiter ratelimit.Limiter
	opts    Options

	st           traversal
	current      fetch.Page
	err          error
	guardTripped bool
	logger       *slog.Logger
}

func NewDriver(engine fetch.Engine, limiter ratelimit.Limiter, opts Options, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	if opts.NoProgressCap < 1 {
		opts.NoProgressCap = 1
	}
	return &Driver{
		engine:  engine,
		limiter: limiter,
		opts:    opts,
		st:      traversal{seen: make(map[string]struct{}), state: StateInit},
		logger:  logger.With("component", "pagination"),
	}
}

// Next returns the next page carrying new cards. ok is false at normal
// exhaustion; a non-nil error marks the traversal terminally failed for
// this category only. Cancellation is checked between fetches.
func (d *Driver) Next(ctx context.Context) (fetch.Page, bool, error) {
	for {
		switch d.st.state {
		case StateExhausted:
			return nil, false, nil
		case StateError:
			return nil, false, d.err
		}

		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return nil, false, err
			}
		}

		var page fetch.Page
		var err error
		switch d.st.state {
		case StateInit:
			page, err = d.engine.Fetch(ctx, d.opts.StartURL)
		case StateHasMore:
			page, err = d.engine.Advance(ctx, d.current, d.opts.Step)
		}
		d.st.state = StateLoading

		if errors.Is(err, fetch.ErrNoFurtherPages) {
			d.st.state = StateExhausted
			return nil, false, nil
		}
		if err != nil {
			d.st.state = StateError
			d.err = err
			d.recordError()
			return nil, false, err
		}
		d.recordSuccess()

		d.current = page
		d.st.pageIndex++

		sig := page.Signature(d.opts.CardSelector)
		_, stale := d.st.seen[sig]
		if stale {
			d.st.noProgress++
		} else {
			d.st.seen[sig] = struct{}{}
			d.st.noProgress = 0
		}

		if stale && d.st.noProgress >= d.opts.NoProgressCap {
			// Either the genuine end of the listing or anti-bot
			// interference; both end the traversal normally.
			d.guardTripped = true
			d.st.state = StateExhausted
			d.logger.Debug("no-progress cap reached",
				"url", d.opts.StartURL, "pages", d.st.pageIndex)
			return nil, false, nil
		}

		if d.st.pageIndex >= d.opts.MaxPages || !d.hasAffordance(page) {
			d.st.state = StateExhausted
			if stale {
				return nil, false, nil
			}
			return page, true, nil
		}

		d.st.state = StateHasMore
		if stale {
			continue
		}
		return page, true, nil
	}
}

// hasAffordance reports whether the page still offers a way forward for the
// configured paging mode.
func (d *Driver) hasAffordance(page fetch.Page) bool {
	switch d.opts.Step.Mode {
	case config.ModePaged:
		return page.Has(d.opts.Step.NextSelector)
	case config.ModeLoadMore:
		return page.Has(d.opts.Step.LoadMoreSelector)
	case config.ModeInfiniteScroll:
		// Scroll loads have no visible control; the no-progress cap and
		// max-pages bound the traversal instead.
		return true
	default:
		return false
	}
}

// GuardTripped reports whether the traversal ended on the no-progress cap.
func (d *Driver) GuardTripped() bool {
	return d.guardTripped
}

// State exposes the machine state, mainly for tests and diagnostics.
func (d *Driver) State() State {
	return d.st.state
}

// Pages returns how many pages were fetched so far.
func (d *Driver) Pages() int {
	return d.st.pageIndex
}

func (d *Driver) recordSuccess() {
	if a, ok := d.limiter.(interface{ RecordSuccess() }); ok {
		a.RecordSuccess()
	}
}

func (d *Driver) recordError() {
	if a, ok := d.limiter.(interface{ RecordError() }); ok {
		a.RecordError()
	}
}
