package renderer

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Warmup renders every request in params with at most workers concurrent
// renders, so the first client request for them is a cache hit. Failures
// are logged and skipped.
func (r *Renderer) Warmup(ctx context.Context, params []Params, workers int) {
	if len(params) == 0 {
		return
	}

	r.logger.Info("Starting cache warmup", zap.Int("images", len(params)), zap.Int("workers", workers))

	// Worker pool size configured via env (defaults to 1)
	if workers <= 0 {
		workers = 1
	}

	workerChan := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for _, p := range params {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		workerChan <- struct{}{} // Acquire worker slot

		go func(p Params) {
			defer wg.Done()
			defer func() { <-workerChan }() // Release worker slot

			entry, err := r.Render(ctx, p)
			if err != nil {
				r.logger.Warn("Warmup render failed", zap.String("url", p.URL), zap.Error(err))
				return
			}
			entry.Body.Close()
		}(p)
	}

	wg.Wait()
	r.logger.Info("Cache warmup completed")
}
