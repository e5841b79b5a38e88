// Package collector orchestrates one category traversal: drives pagination,
// extracts every product card, and admits results through the identity index.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/donizo/material-scraper/internal/config"
	"github.com/donizo/material-scraper/internal/dedup"
	"github.com/donizo/material-scraper/internal/extract"
	"github.com/donizo/material-scraper/internal/fetch"
	"github.com/donizo/material-scraper/internal/metrics"
	"github.com/donizo/material-scraper/internal/models"
	"github.com/donizo/material-scraper/internal/pagination"
	"github.com/donizo/material-scraper/internal/ratelimit"
)

// Result is everything one category traversal produced.
type Result struct {
	Products    []models.Product
	Diagnostics []models.Diagnostic
	Pages       int
	Duplicates  int
	Skipped     int
}

// Collector runs a single supplier/category target to completion.
type Collector struct {
	engine    fetch.Engine
	limiters  *ratelimit.Provider
	dedup     *dedup.Deduplicator
	extractor *extract.Extractor
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(engine fetch.Engine, limiters *ratelimit.Provider, dd *dedup.Deduplicator, m *metrics.Metrics, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		engine:    engine,
		limiters:  limiters,
		dedup:     dd,
		extractor: extract.NewExtractor(logger),
		metrics:   m,
		logger:    logger.With("component", "collector"),
	}
}

// Collect traverses the target and returns the admitted products in
// extraction order plus every diagnostic. A returned error means the
// traversal ended on a terminal fetch fault; the partial result is still
// valid. A single malformed card never aborts the traversal.
func (c *Collector) Collect(ctx context.Context, t config.Target) (*Result, error) {
	res := &Result{}

	base, err := url.Parse(t.BaseURL)
	if err != nil || base.Host == "" {
		base, _ = url.Parse(t.Category.URL)
	}

	cc := extract.CardContext{
		Supplier:  t.Supplier,
		Category:  t.Category.Name,
		Base:      base,
		Selectors: t.Category.Selectors,
	}

	var limiter ratelimit.Limiter
	if c.limiters != nil {
		limiter = c.limiters.For(t.Supplier)
	}

	driver := pagination.NewDriver(c.engine, limiter, pagination.Options{
		StartURL:     t.Category.URL,
		CardSelector: t.Category.Selectors.Card,
		Step: fetch.Step{
			Mode:             t.Category.Paging.Mode,
			NextSelector:     t.Category.Paging.NextButton,
			LoadMoreSelector: t.Category.Paging.LoadMoreButton,
			CardSelector:     t.Category.Selectors.Card,
			ScrollSteps:      t.Category.Paging.ScrollSteps,
			ScrollWait:       time.Duration(t.Category.Paging.ScrollWaitMs) * time.Millisecond,
		},
		MaxPages:      t.Category.Paging.MaxPages,
		NoProgressCap: t.Category.Paging.NoProgressCap,
	}, c.logger)

	c.logger.Info("starting category traversal",
		"supplier", t.Supplier, "category", t.Category.Name, "url", t.Category.URL)

	var terminalErr error
	for {
		start := time.Now()
		page, ok, err := driver.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Cooperative stop: keep what was extracted so far.
				terminalErr = ctx.Err()
				break
			}
			c.metrics.IncFetchError(t.Supplier)
			terminalErr = err
			break
		}
		if !ok {
			break
		}
		c.metrics.ObserveFetch(time.Since(start))
		c.metrics.IncPage(t.Supplier)
		res.Pages++

		for _, card := range page.Cards(t.Category.Selectors.Card) {
			c.processCard(ctx, card, cc, res)
		}
	}

	if driver.GuardTripped() {
		c.record(res, models.NewDiagnostic(t.Supplier, t.Category.Name, "", models.ReasonNoProgress))
	}

	c.logger.Info("category traversal finished",
		"supplier", t.Supplier, "category", t.Category.Name,
		"pages", res.Pages, "products", len(res.Products),
		"duplicates", res.Duplicates, "skipped", res.Skipped,
		"state", driver.State().String())

	return res, terminalErr
}

// processCard extracts one card and admits the result. Unexpected faults are
// contained here: the card is skipped with a diagnostic and traversal
// continues.
func (c *Collector) processCard(ctx context.Context, card fetch.Element, cc extract.CardContext, res *Result) {
	cr, fault := c.extractOne(card, cc)
	if fault != nil {
		res.Skipped++
		c.record(res, models.NewDiagnostic(cc.Supplier, cc.Category, "", models.ReasonCardFault))
		c.logger.Warn("card extraction fault",
			"supplier", cc.Supplier, "category", cc.Category, "error", fault)
		return
	}

	if cr.Outcome == extract.OutcomeSkipped {
		res.Skipped++
		c.record(res, models.NewDiagnostic(cc.Supplier, cc.Category, "",
			models.ReasonMissingRequired, cr.Missing...))
		return
	}

	p := cr.Product

	status, err := c.dedup.Admit(ctx, p)
	if err != nil {
		res.Skipped++
		c.record(res, models.NewDiagnostic(cc.Supplier, cc.Category, p.URL, models.ReasonTargetFault))
		c.logger.Error("identity index admit failed", "error", err, "url", p.URL)
		return
	}
	if status == dedup.Duplicate {
		res.Duplicates++
		c.metrics.IncDuplicate()
		c.record(res, models.NewDiagnostic(cc.Supplier, cc.Category, p.URL, models.ReasonDuplicate))
		return
	}

	if cr.Outcome == extract.OutcomePartial {
		c.record(res, models.NewDiagnostic(cc.Supplier, cc.Category, p.URL,
			models.ReasonPartial, cr.Missing...))
	}
	for _, note := range cr.Notes {
		c.record(res, models.NewDiagnostic(cc.Supplier, cc.Category, p.URL, note))
	}

	c.metrics.IncItem(string(p.Completeness))
	res.Products = append(res.Products, *p)
}

func (c *Collector) extractOne(card fetch.Element, cc extract.CardContext) (cr extract.CardResult, fault error) {
	defer func() {
		if r := recover(); r != nil {
			fault = fmt.Errorf("card extraction panic: %v", r)
		}
	}()
	return c.extractor.Extract(card, cc), nil
}

func (c *Collector) record(res *Result, d models.Diagnostic) {
	c.metrics.IncDiagnostic(d.Reason)
	res.Diagnostics = append(res.Diagnostics, d)
}
