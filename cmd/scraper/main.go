package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/donizo/material-scraper/internal/config"
	"github.com/donizo/material-scraper/internal/dedup"
	"github.com/donizo/material-scraper/internal/export"
	"github.com/donizo/material-scraper/internal/fetch"
	"github.com/donizo/material-scraper/internal/metrics"
	"github.com/donizo/material-scraper/internal/ratelimit"
	"github.com/donizo/material-scraper/internal/report"
	"github.com/donizo/material-scraper/internal/run"
)

func main() {
	var (
		configPath  = flag.String("config", "config/scraper_config.yaml", "supplier configuration file")
		engineName  = flag.String("engine", "", "fetch engine: static or browser (default from env, auto-upgraded when a supplier needs a browser)")
		outputPath  = flag.String("output", "output/products.json", "output file path")
		format      = flag.String("format", "json", "output format: json, csv or both")
		reportPath  = flag.String("report", "", "optional HTML report path")
		seedPath    = flag.String("seed", "", "previous JSON dataset used to pre-populate the identity index")
		minItems    = flag.Int("min-items", 0, "warn when the run admits fewer items than this")
		concurrency = flag.Int("concurrency", 0, "worker count (default from env)")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	_ = godotenv.Load()

	settings := config.LoadSettings()
	if *engineName != "" {
		settings.Engine = *engineName
	}
	if *concurrency > 0 {
		settings.Concurrency = *concurrency
	}
	if *verbose {
		settings.LogLevel = "debug"
	}

	logger := newLogger(settings)
	slog.SetDefault(logger)

	if err := settings.Validate(); err != nil {
		logger.Error("invalid settings", "error", err)
		os.Exit(1)
	}

	suppliers, err := config.LoadSuppliers(*configPath)
	if err != nil {
		logger.Error("invalid supplier configuration", "error", err)
		os.Exit(1)
	}

	if suppliers.RequiresBrowser() && settings.Engine == "static" {
		logger.Info("supplier configuration needs a browser, switching engine")
		settings.Engine = "browser"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	factory, cleanup, err := newEngineFactory(settings, suppliers)
	if err != nil {
		logger.Error("engine setup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	index, err := newIndex(ctx, settings, logger)
	if err != nil {
		logger.Error("identity index setup failed", "error", err)
		os.Exit(1)
	}
	dd := dedup.New(index, logger)

	if *seedPath != "" {
		ds, err := export.ReadDataset(*seedPath)
		if err != nil {
			logger.Error("seed dataset unreadable", "error", err)
			os.Exit(1)
		}
		n, err := dd.Seed(ctx, ds.Items)
		if err != nil {
			logger.Error("seeding identity index failed", "error", err)
			os.Exit(1)
		}
		logger.Info("identity index seeded", "items", len(ds.Items), "new", n)
	}

	m := metrics.New()
	limiters := ratelimit.NewProvider(settings.DelayMin, settings.DelayMax)

	orchestrator := run.New(suppliers, factory, dd, limiters, m, settings.Concurrency, logger)
	result := orchestrator.Run(ctx)

	writer, err := export.NewWriter(*format, *outputPath)
	if err != nil {
		logger.Error("output setup failed", "error", err)
		os.Exit(1)
	}
	if err := writer.Write(result.Products); err != nil {
		logger.Error("writing output failed", "error", err)
		os.Exit(1)
	}
	if err := writer.Close(); err != nil {
		logger.Error("finalizing output failed", "error", err)
		os.Exit(1)
	}
	if err := writer.Validate(); err != nil {
		logger.Error("output validation failed", "error", err)
		os.Exit(1)
	}

	if *reportPath != "" {
		if err := report.WriteHTML(result, *reportPath); err != nil {
			logger.Error("writing report failed", "error", err)
		}
	}

	fmt.Printf("run %s: %d admitted, %d duplicates, %d skipped, %d pages, %d diagnostics\n",
		result.RunID, result.Admitted, result.Duplicates, result.Skipped,
		result.PagesFetched, len(result.Diagnostics))
	if *minItems > 0 && result.Admitted < *minItems {
		fmt.Printf("admitted %d items, below the %d target\n", result.Admitted, *minItems)
	}
	if len(result.FailedTargets) > 0 {
		fmt.Printf("failed targets: %v\n", result.FailedTargets)
	}
	if result.Cancelled {
		fmt.Println("run was cancelled, output holds partial data")
	}
}

func newLogger(settings *config.Settings) *slog.Logger {
	var level slog.Level
	switch settings.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if settings.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// newEngineFactory returns a per-worker engine constructor. Browser mode
// shares one playwright runtime and hands each worker its own tab.
func newEngineFactory(settings *config.Settings, suppliers *config.File) (fetch.Factory, func(), error) {
	if settings.Engine == "browser" {
		opts := fetch.DefaultBrowserOptions()
		opts.Headless = settings.Headless
		if suppliers.Headless != nil {
			opts.Headless = *suppliers.Headless
		}
		opts.Timeout = settings.FetchTimeout
		opts.MaxRetries = settings.MaxRetries
		if suppliers.UserAgent != "" {
			opts.UserAgent = suppliers.UserAgent
		} else {
			opts.UserAgent = settings.PickUserAgent()
		}

		browser, err := fetch.NewBrowser(opts)
		if err != nil {
			return nil, func() {}, err
		}
		return browser.NewEngine, func() { browser.Close() }, nil
	}

	factory := func() (fetch.Engine, error) {
		opts := &fetch.StaticOptions{
			Timeout:           settings.FetchTimeout,
			UserAgent:         settings.PickUserAgent(),
			MaxRetries:        settings.MaxRetries,
			RetryDelay:        settings.RetryDelay,
			RequestsPerSecond: settings.RequestsPerSecond,
		}
		if suppliers.UserAgent != "" {
			opts.UserAgent = suppliers.UserAgent
		}
		return fetch.NewStaticEngine(opts), nil
	}
	return factory, func() {}, nil
}

// newIndex picks the identity index backend: Redis when configured, an
// in-process map otherwise.
func newIndex(ctx context.Context, settings *config.Settings, logger *slog.Logger) (dedup.IndexStore, error) {
	if settings.RedisAddr == "" {
		return dedup.NewMemoryIndex(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     settings.RedisAddr,
		Password: settings.RedisPassword,
		DB:       settings.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", settings.RedisAddr, err)
	}
	logger.Info("using redis identity index", "addr", settings.RedisAddr, "key", settings.RedisIndexKey)
	return dedup.NewRedisIndex(client, settings.RedisIndexKey), nil
}
