// Package run fans a configured set of supplier/category targets out over a
// bounded worker pool and aggregates what every traversal produced. One
// failing target never takes down the run.
package run

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/donizo/material-scraper/internal/collector"
	"github.com/donizo/material-scraper/internal/config"
	"github.com/donizo/material-scraper/internal/dedup"
	"github.com/donizo/material-scraper/internal/fetch"
	"github.com/donizo/material-scraper/internal/metrics"
	"github.com/donizo/material-scraper/internal/models"
	"github.com/donizo/material-scraper/internal/ratelimit"
)

// Orchestrator owns the lifecycle of one run: worker pool, shared identity
// index, and result aggregation.
type Orchestrator struct {
	suppliers   *config.File
	newEngine   fetch.Factory
	dedup       *dedup.Deduplicator
	limiters    *ratelimit.Provider
	metrics     *metrics.Metrics
	concurrency int
	logger      *slog.Logger
}

func New(suppliers *config.File, newEngine fetch.Factory, dd *dedup.Deduplicator, limiters *ratelimit.Provider, m *metrics.Metrics, concurrency int, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		suppliers:   suppliers,
		newEngine:   newEngine,
		dedup:       dd,
		limiters:    limiters,
		metrics:     m,
		concurrency: concurrency,
		logger:      logger.With("component", "orchestrator"),
	}
}

// Run traverses every supplier/category target and aggregates products plus
// diagnostics. Cancellation stops cleanly between page fetches and returns
// the partial result; already-extracted data is never lost.
func (o *Orchestrator) Run(ctx context.Context) *models.RunResult {
	result := &models.RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	targets := o.suppliers.Targets()
	workers := o.concurrency
	if workers > len(targets) {
		workers = len(targets)
	}

	o.logger.Info("run starting",
		"run_id", result.RunID, "targets", len(targets), "workers", workers)

	jobs := make(chan config.Target)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.worker(ctx, jobs, result, &mu)
		}()
	}

feed:
	for _, t := range targets {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- t:
		}
	}
	close(jobs)
	wg.Wait()

	result.FinishedAt = time.Now()
	result.Admitted = len(result.Products)
	result.Cancelled = ctx.Err() != nil

	o.logger.Info("run finished",
		"run_id", result.RunID,
		"admitted", result.Admitted,
		"duplicates", result.Duplicates,
		"skipped", result.Skipped,
		"diagnostics", len(result.Diagnostics),
		"failed_targets", len(result.FailedTargets),
		"cancelled", result.Cancelled,
		"duration", result.FinishedAt.Sub(result.StartedAt))

	return result
}

func (o *Orchestrator) worker(ctx context.Context, jobs <-chan config.Target, result *models.RunResult, mu *sync.Mutex) {
	engine, err := o.newEngine()
	if err != nil {
		o.logger.Error("engine construction failed, worker idle", "error", err)
		for range jobs {
		}
		return
	}
	defer engine.Close()

	c := collector.New(engine, o.limiters, o.dedup, o.metrics, o.logger)

	for t := range jobs {
		if ctx.Err() != nil {
			return
		}
		res, err := o.collectSafely(ctx, c, t)

		mu.Lock()
		if res != nil {
			result.Products = append(result.Products, res.Products...)
			result.Diagnostics = append(result.Diagnostics, res.Diagnostics...)
			result.Duplicates += res.Duplicates
			result.Skipped += res.Skipped
			result.PagesFetched += res.Pages
		}
		if err != nil && ctx.Err() == nil {
			// Terminal for this target only; the run moves on.
			name := t.Supplier + "/" + t.Category.Name
			result.FailedTargets = append(result.FailedTargets, name)
			result.Diagnostics = append(result.Diagnostics,
				models.NewDiagnostic(t.Supplier, t.Category.Name, "", models.ReasonFetchFailed))
			o.metrics.IncDiagnostic(models.ReasonFetchFailed)
			o.logger.Error("target traversal failed",
				"supplier", t.Supplier, "category", t.Category.Name, "error", err)
		}
		mu.Unlock()
	}
}

// collectSafely isolates a whole target: even a panic escaping the collector
// is contained to this supplier/category.
func (o *Orchestrator) collectSafely(ctx context.Context, c *collector.Collector, t config.Target) (res *collector.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("target panic: %v", r)
		}
	}()
	return c.Collect(ctx, t)
}
