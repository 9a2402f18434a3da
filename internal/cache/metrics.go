package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts requests answered from an existing entry
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "graytone_cache_hits_total",
			Help: "Total number of transform cache hits",
		},
	)

	// CacheMisses counts requests that had to fetch and transform
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "graytone_cache_misses_total",
			Help: "Total number of transform cache misses",
		},
	)

	// NotModified counts 304 responses
	NotModified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "graytone_304_responses_total",
			Help: "Total number of 304 Not Modified responses",
		},
	)

	// CacheEntries tracks the number of published entries
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graytone_cache_entries",
			Help: "Current number of entries in the transform cache",
		},
	)

	// CacheSize tracks the bytes held by published entries
	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graytone_cache_size_bytes",
			Help: "Current size of the transform cache in bytes",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graytone_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "read", "publish", "scan"
	)
)
