package config

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings holds runtime configuration sourced from the environment.
// Supplier and category targets live in the YAML file (see suppliers.go).
type Settings struct {
	Engine            string
	Concurrency       int
	Headless          bool
	UserAgent         string
	UserAgents        []string
	FetchTimeout      time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	DelayMin          time.Duration
	DelayMax          time.Duration
	RequestsPerSecond float64

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisIndexKey string

	ListenAddr string
	LogLevel   string
	LogFormat  string
}

// LoadSettings reads runtime settings from the environment with defaults.
func LoadSettings() *Settings {
	return &Settings{
		Engine:            getEnvOrDefault("SCRAPER_ENGINE", "static"),
		Concurrency:       getIntOrDefault("SCRAPER_CONCURRENCY", 4),
		Headless:          getBoolOrDefault("SCRAPER_HEADLESS", true),
		UserAgent:         getEnvOrDefault("SCRAPER_USER_AGENT", defaultUserAgent),
		UserAgents:        getStringSliceOrDefault("SCRAPER_USER_AGENTS", nil),
		FetchTimeout:      getDurationOrDefault("SCRAPER_FETCH_TIMEOUT", 30*time.Second),
		MaxRetries:        getIntOrDefault("SCRAPER_MAX_RETRIES", 3),
		RetryDelay:        getDurationOrDefault("SCRAPER_RETRY_DELAY", 2*time.Second),
		DelayMin:          getDurationOrDefault("SCRAPER_DELAY_MIN", 1*time.Second),
		DelayMax:          getDurationOrDefault("SCRAPER_DELAY_MAX", 4*time.Second),
		RequestsPerSecond: getFloatOrDefault("SCRAPER_REQUESTS_PER_SECOND", 2),

		RedisAddr:     getEnvOrDefault("REDIS_ADDR", ""),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       getIntOrDefault("REDIS_DB", 0),
		RedisIndexKey: getEnvOrDefault("REDIS_INDEX_KEY", "scraper:identity"),

		ListenAddr: getEnvOrDefault("SCRAPER_LISTEN_ADDR", ":8080"),
		LogLevel:   getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:  getEnvOrDefault("LOG_FORMAT", "json"),
	}
}

// Validate rejects incoherent runtime settings before any traversal starts.
func (s *Settings) Validate() error {
	if s.Engine != "static" && s.Engine != "browser" {
		return fmt.Errorf("SCRAPER_ENGINE must be static or browser, got %q", s.Engine)
	}
	if s.Concurrency < 1 {
		return fmt.Errorf("SCRAPER_CONCURRENCY must be at least 1")
	}
	if s.DelayMin > s.DelayMax {
		return fmt.Errorf("SCRAPER_DELAY_MIN cannot exceed SCRAPER_DELAY_MAX")
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("SCRAPER_MAX_RETRIES cannot be negative")
	}
	if s.RequestsPerSecond <= 0 {
		return fmt.Errorf("SCRAPER_REQUESTS_PER_SECOND must be positive")
	}
	if s.UserAgent == "" {
		return fmt.Errorf("SCRAPER_USER_AGENT cannot be empty")
	}
	return nil
}

// PickUserAgent returns a random entry from the SCRAPER_USER_AGENTS pool,
// or the single configured user agent when no pool is set. Each fetch
// engine picks its own identity at construction.
func (s *Settings) PickUserAgent() string {
	if len(s.UserAgents) == 0 {
		return s.UserAgent
	}
	return strings.TrimSpace(s.UserAgents[rand.Intn(len(s.UserAgents))])
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
