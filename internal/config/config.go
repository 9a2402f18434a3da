package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port            int
	CacheDir        string
	MaxDownload     int64
	FetchTimeout    time.Duration
	UserAgent       string
	DefaultLevels   int
	DefaultWidth    int
	DefaultHeight   int
	CacheMaxAge     int
	Resampler       string
	VipsMaxCacheMB  int
	VipsConcurrency int
	SingleFlight    bool
	WarmupURLs      []string
	WarmupWorkers   int
	LogLevel        string
	LogFormat       string
	AllowedOrigin   string
}

func Load() *Config {
	cfg := &Config{
		Port:            getEnvInt("PORT", 8080),
		CacheDir:        getEnv("CACHE_DIR", "/data/cache"),
		MaxDownload:     getEnvInt64("MAX_DOWNLOAD", 10*1024*1024), // 10 MiB default
		FetchTimeout:    getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
		UserAgent:       getEnv("USER_AGENT", "graytone/1.0"),
		DefaultLevels:   getEnvInt("DEFAULT_LEVELS", 8),
		DefaultWidth:    getEnvInt("DEFAULT_WIDTH", 400),
		DefaultHeight:   getEnvInt("DEFAULT_HEIGHT", 400),
		CacheMaxAge:     getEnvInt("CACHE_MAX_AGE", 300),
		Resampler:       getEnv("RESAMPLER", "imaging"),
		VipsMaxCacheMB:  getEnvInt("VIPS_MAX_CACHE_MB", 256),
		VipsConcurrency: getEnvInt("VIPS_CONCURRENCY", 1),
		SingleFlight:    getEnvBool("SINGLEFLIGHT", false),
		WarmupURLs:      getEnvList("WARMUP_URLS"),
		WarmupWorkers:   getEnvInt("WARMUP_WORKERS", 1),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		AllowedOrigin:   getEnv("ALLOWED_ORIGIN", ""),
	}

	return cfg
}

// CacheControl returns the Cache-Control value sent with every image response
func (c *Config) CacheControl() string {
	return "public, max-age=" + strconv.Itoa(c.CacheMaxAge)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("10s") or plain seconds ("10")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
