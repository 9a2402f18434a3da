package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"graytone/internal/cache"
	"graytone/internal/config"
	"graytone/internal/fetch"
	httphandlers "graytone/internal/http"
	"graytone/internal/logger"
	"graytone/internal/renderer"
	"graytone/internal/transform"
	"graytone/internal/transform/vipsresample"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	resampler, shutdown, err := newResampler(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize resampler", zap.Error(err))
	}
	defer shutdown()

	log.Info("Starting graytone server",
		zap.Int("port", cfg.Port),
		zap.String("cache_dir", cfg.CacheDir),
		zap.String("resampler", resampler.Name()),
		zap.Bool("singleflight", cfg.SingleFlight),
	)

	store, err := cache.NewFileStore(cfg.CacheDir)
	if err != nil {
		log.Fatal("Failed to initialize cache", zap.Error(err))
	}

	scan, err := store.Scan(log)
	if err != nil {
		log.Warn("Initial cache scan failed", zap.Error(err))
	} else {
		log.Info("Cache scanned",
			zap.Int("entries", scan.Entries),
			zap.Int64("bytes", scan.Bytes),
			zap.Int("tmp_removed", scan.TmpRemoved),
		)
	}

	fetcher := fetch.New(fetch.Config{
		MaxBytes:  cfg.MaxDownload,
		Timeout:   cfg.FetchTimeout,
		UserAgent: cfg.UserAgent,
	}, &http.Client{}, log)

	pipeline := transform.New(resampler, log)
	r := renderer.New(store, fetcher, pipeline, log, renderer.Options{SingleFlight: cfg.SingleFlight})

	handlers := httphandlers.New(cfg, log, r)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(cfg.WarmupURLs) > 0 {
		go r.Warmup(ctx, warmupParams(cfg), cfg.WarmupWorkers)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handlers.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.Int("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}

func newResampler(cfg *config.Config, log *zap.Logger) (transform.Resampler, func(), error) {
	switch cfg.Resampler {
	case "imaging":
		return transform.NewImagingResampler(), func() {}, nil
	case "vips":
		vipsresample.Startup(vipsresample.Config{
			MaxCacheMB:  cfg.VipsMaxCacheMB,
			Concurrency: cfg.VipsConcurrency,
		}, log)
		return vipsresample.New(), vipsresample.Shutdown, nil
	default:
		return nil, nil, fmt.Errorf("unknown resampler: %s (supported: imaging, vips)", cfg.Resampler)
	}
}

func warmupParams(cfg *config.Config) []renderer.Params {
	params := make([]renderer.Params, 0, len(cfg.WarmupURLs))
	for _, u := range cfg.WarmupURLs {
		params = append(params, renderer.Params{
			URL:    u,
			Levels: cfg.DefaultLevels,
			Width:  cfg.DefaultWidth,
			Height: cfg.DefaultHeight,
		})
	}
	return params
}
