package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/data/cache", cfg.CacheDir)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxDownload)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 8, cfg.DefaultLevels)
	assert.Equal(t, 400, cfg.DefaultWidth)
	assert.Equal(t, 400, cfg.DefaultHeight)
	assert.Equal(t, "imaging", cfg.Resampler)
	assert.False(t, cfg.SingleFlight)
	assert.Empty(t, cfg.WarmupURLs)
	assert.Equal(t, "public, max-age=300", cfg.CacheControl())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_DIR", "/tmp/graytone")
	t.Setenv("MAX_DOWNLOAD", "2048")
	t.Setenv("FETCH_TIMEOUT", "1500ms")
	t.Setenv("DEFAULT_LEVELS", "16")
	t.Setenv("CACHE_MAX_AGE", "60")
	t.Setenv("RESAMPLER", "vips")
	t.Setenv("SINGLEFLIGHT", "true")
	t.Setenv("WARMUP_URLS", " https://a.test/1.png ,, https://a.test/2.png")

	cfg := Load()

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/tmp/graytone", cfg.CacheDir)
	assert.Equal(t, int64(2048), cfg.MaxDownload)
	assert.Equal(t, 1500*time.Millisecond, cfg.FetchTimeout)
	assert.Equal(t, 16, cfg.DefaultLevels)
	assert.Equal(t, "public, max-age=60", cfg.CacheControl())
	assert.Equal(t, "vips", cfg.Resampler)
	assert.True(t, cfg.SingleFlight)
	assert.Equal(t, []string{"https://a.test/1.png", "https://a.test/2.png"}, cfg.WarmupURLs)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "eighty")
	t.Setenv("FETCH_TIMEOUT", "soon")
	t.Setenv("SINGLEFLIGHT", "maybe")

	cfg := Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.False(t, cfg.SingleFlight)
}

func TestGetEnvDuration_PlainSeconds(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT", "3")
	assert.Equal(t, 3*time.Second, getEnvDuration("FETCH_TIMEOUT", time.Second))
}
