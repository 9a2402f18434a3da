package renderer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"graytone/internal/cache"
)

// Fetcher retrieves source image bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Transformer turns source bytes into the final PNG.
type Transformer interface {
	Transform(data []byte, width, height, levels int) ([]byte, error)
}

// Params are validated transform parameters.
type Params struct {
	URL    string
	Levels int
	Width  int
	Height int
}

// Key derives the cache key addressing these parameters.
func (p Params) Key() cache.Key {
	return cache.DeriveKey(p.URL, p.Levels, p.Width, p.Height)
}

type Options struct {
	// SingleFlight collapses concurrent misses for the same key into one
	// fetch and transform. Without it each miss does its own work and the
	// atomic publish makes the redundant writes harmless.
	SingleFlight bool
}

type Renderer struct {
	store    cache.Store
	fetcher  Fetcher
	pipeline Transformer
	logger   *zap.Logger
	group    *singleflight.Group
}

func New(store cache.Store, fetcher Fetcher, pipeline Transformer, logger *zap.Logger, opts Options) *Renderer {
	r := &Renderer{
		store:    store,
		fetcher:  fetcher,
		pipeline: pipeline,
		logger:   logger,
	}
	if opts.SingleFlight {
		r.group = &singleflight.Group{}
	}
	return r
}

// Lookup reports whether a complete entry exists for key.
func (r *Renderer) Lookup(key cache.Key) bool {
	return r.store.Exists(key)
}

// Render returns the cached PNG for p, producing and publishing it first on
// a miss. Errors from the fetcher, pipeline and store are returned
// unchanged so callers can classify them. The caller closes the entry body.
func (r *Renderer) Render(ctx context.Context, p Params) (*cache.Entry, error) {
	key := p.Key()

	entry, err := r.store.Read(key)
	if err == nil {
		cache.CacheHits.Inc()
		return entry, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		return nil, err
	}

	cache.CacheMisses.Inc()

	if err := r.produce(ctx, key, p); err != nil {
		return nil, err
	}

	entry, err = r.store.Read(key)
	if err != nil {
		return nil, fmt.Errorf("read after publish: %w", err)
	}
	return entry, nil
}

func (r *Renderer) produce(ctx context.Context, key cache.Key, p Params) error {
	if r.group == nil {
		return r.build(ctx, key, p)
	}

	// The shared build outlives any single caller; the fetch timeout still
	// bounds it.
	_, err, shared := r.group.Do(string(key), func() (interface{}, error) {
		return nil, r.build(context.WithoutCancel(ctx), key, p)
	})
	if shared {
		r.logger.Debug("Shared in-flight render", zap.String("key", key.String()))
	}
	return err
}

func (r *Renderer) build(ctx context.Context, key cache.Key, p Params) error {
	start := time.Now()

	src, err := r.fetcher.Fetch(ctx, p.URL)
	if err != nil {
		return err
	}

	out, err := r.pipeline.Transform(src, p.Width, p.Height, p.Levels)
	if err != nil {
		return err
	}

	if err := r.store.Publish(key, out); err != nil {
		r.logger.Error("Failed to publish cache entry", zap.String("key", key.String()), zap.Error(err))
		return err
	}

	r.logger.Info("Rendered image",
		zap.String("key", key.String()),
		zap.String("url", p.URL),
		zap.Int("levels", p.Levels),
		zap.Int("width", p.Width),
		zap.Int("height", p.Height),
		zap.Int("source_bytes", len(src)),
		zap.Int("bytes", len(out)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}
