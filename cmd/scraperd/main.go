package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/donizo/material-scraper/internal/api"
	"github.com/donizo/material-scraper/internal/config"
	"github.com/donizo/material-scraper/internal/dedup"
	"github.com/donizo/material-scraper/internal/fetch"
	"github.com/donizo/material-scraper/internal/metrics"
	"github.com/donizo/material-scraper/internal/ratelimit"
	"github.com/donizo/material-scraper/internal/run"
)

func main() {
	configPath := flag.String("config", "config/scraper_config.yaml", "supplier configuration file")
	flag.Parse()

	_ = godotenv.Load()

	settings := config.LoadSettings()

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

	ctx, cancel := context.WithCancel(context.Background())
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

	m := metrics.New()
	limiters := ratelimit.NewProvider(settings.DelayMin, settings.DelayMax)
	orchestrator := run.New(suppliers, factory, dd, limiters, m, settings.Concurrency, logger)

	handlers := api.NewHandlers(ctx, orchestrator, m, logger)

	server := &http.Server{
		Addr:         settings.ListenAddr,
		Handler:      handlers.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", settings.ListenAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
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
