// Package fetch downloads source images with a byte cap and a deadline.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "graytone_fetch_duration_seconds",
		Help:    "Source image fetch duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graytone_fetch_errors_total",
		Help: "Total source fetch errors by kind",
	}, []string{"kind"})

	fetchBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graytone_fetch_bytes_total",
		Help: "Total bytes downloaded from sources",
	})
)

// DefaultMaxBytes is the default source size cap (10 MiB).
const DefaultMaxBytes = 10 * 1024 * 1024

// Config holds fetcher limits.
type Config struct {
	// MaxBytes is the largest accepted body, inclusive.
	MaxBytes int64

	// Timeout bounds the whole fetch, headers and body.
	Timeout time.Duration

	// UserAgent is sent with every request when non-empty.
	UserAgent string
}

// Fetcher performs single-attempt GETs.
type Fetcher struct {
	httpClient *http.Client
	config     Config
	logger     *zap.Logger
}

// New creates a Fetcher. A nil httpClient uses a fresh http.Client.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &Fetcher{
		httpClient: httpClient,
		config:     cfg,
		logger:     logger,
	}
}

// Fetch downloads url and returns its body. It never retries and never
// buffers more than MaxBytes+1 bytes.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	data, err := f.fetch(ctx, url)
	fetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		var fe *Error
		if errors.As(err, &fe) {
			fetchErrorsTotal.WithLabelValues(string(fe.Kind)).Inc()
		}
		f.logger.Debug("Fetch failed", zap.String("url", url), zap.Error(err))
		return nil, err
	}

	fetchBytesTotal.Add(float64(len(data)))
	f.logger.Debug("Fetched source",
		zap.String("url", url),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)),
	)
	return data, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: url, Err: fmt.Errorf("build request: %w", err)}
	}
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, f.classify(ctx, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: KindUpstreamStatus, URL: url, StatusCode: resp.StatusCode}
	}

	if resp.ContentLength > f.config.MaxBytes {
		return nil, f.tooLarge(url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes+1))
	if err != nil {
		return nil, f.classify(ctx, url, err)
	}
	if int64(len(data)) > f.config.MaxBytes {
		return nil, f.tooLarge(url)
	}

	return data, nil
}

func (f *Fetcher) tooLarge(url string) error {
	return &Error{
		Kind: KindTooLarge,
		URL:  url,
		Err:  fmt.Errorf("source exceeds %d bytes", f.config.MaxBytes),
	}
}

func (f *Fetcher) classify(ctx context.Context, url string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}

	return &Error{Kind: KindNetwork, URL: url, Err: err}
}
