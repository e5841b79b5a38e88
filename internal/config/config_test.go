package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsDefaults(t *testing.T) {
	s := LoadSettings()

	assert.Equal(t, "static", s.Engine)
	assert.Equal(t, 4, s.Concurrency)
	assert.True(t, s.Headless)
	assert.Equal(t, 30*time.Second, s.FetchTimeout)
	assert.Equal(t, 3, s.MaxRetries)
	assert.Equal(t, ":8080", s.ListenAddr)
	assert.Equal(t, "scraper:identity", s.RedisIndexKey)

	require.NoError(t, s.Validate())
}

func TestLoadSettingsFromEnv(t *testing.T) {
	t.Setenv("SCRAPER_ENGINE", "browser")
	t.Setenv("SCRAPER_CONCURRENCY", "8")
	t.Setenv("SCRAPER_HEADLESS", "false")
	t.Setenv("SCRAPER_FETCH_TIMEOUT", "10s")
	t.Setenv("SCRAPER_REQUESTS_PER_SECOND", "0.5")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("LOG_LEVEL", "debug")

	s := LoadSettings()

	assert.Equal(t, "browser", s.Engine)
	assert.Equal(t, 8, s.Concurrency)
	assert.False(t, s.Headless)
	assert.Equal(t, 10*time.Second, s.FetchTimeout)
	assert.Equal(t, 0.5, s.RequestsPerSecond)
	assert.Equal(t, "localhost:6379", s.RedisAddr)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestPickUserAgentWithoutPool(t *testing.T) {
	s := LoadSettings()

	assert.Empty(t, s.UserAgents)
	assert.Equal(t, s.UserAgent, s.PickUserAgent())
}

func TestPickUserAgentFromPool(t *testing.T) {
	t.Setenv("SCRAPER_USER_AGENTS", "agent-one, agent-two")

	s := LoadSettings()
	require.Len(t, s.UserAgents, 2)

	for i := 0; i < 20; i++ {
		assert.Contains(t, []string{"agent-one", "agent-two"}, s.PickUserAgent())
	}
}

func TestLoadSettingsIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SCRAPER_CONCURRENCY", "many")
	t.Setenv("SCRAPER_FETCH_TIMEOUT", "soon")

	s := LoadSettings()

	assert.Equal(t, 4, s.Concurrency)
	assert.Equal(t, 30*time.Second, s.FetchTimeout)
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		want   string
	}{
		{
			name:   "bad engine",
			mutate: func(s *Settings) { s.Engine = "warp" },
			want:   "SCRAPER_ENGINE",
		},
		{
			name:   "zero concurrency",
			mutate: func(s *Settings) { s.Concurrency = 0 },
			want:   "SCRAPER_CONCURRENCY",
		},
		{
			name:   "inverted delays",
			mutate: func(s *Settings) { s.DelayMin = 10 * time.Second; s.DelayMax = time.Second },
			want:   "SCRAPER_DELAY_MIN",
		},
		{
			name:   "negative retries",
			mutate: func(s *Settings) { s.MaxRetries = -1 },
			want:   "SCRAPER_MAX_RETRIES",
		},
		{
			name:   "zero rate",
			mutate: func(s *Settings) { s.RequestsPerSecond = 0 },
			want:   "SCRAPER_REQUESTS_PER_SECOND",
		},
		{
			name:   "empty user agent",
			mutate: func(s *Settings) { s.UserAgent = "" },
			want:   "SCRAPER_USER_AGENT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := LoadSettings()
			tt.mutate(s)
			err := s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
