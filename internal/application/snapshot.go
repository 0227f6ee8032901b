package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

// Snapshot cache metrics, labeled by cache namespace.
var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "passdir_cache_hits_total",
		Help: "Snapshot cache hits (fresh snapshot served).",
	}, []string{"namespace"})
	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "passdir_cache_misses_total",
		Help: "Snapshot cache misses (upstream fetch triggered).",
	}, []string{"namespace"})
	cacheFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "passdir_cache_fallbacks_total",
		Help: "Upstream fetch failures masked by serving a stale snapshot.",
	}, []string{"namespace"})
)

// snapshotCache holds one time-bounded snapshot of an upstream record set.
// Get never returns an error: a failed refetch falls back to the previous
// snapshot even when it is stale, and to an empty set when no snapshot has
// ever been taken (availability over freshness). Concurrent misses share a
// single upstream fetch via singleflight.
type snapshotCache[T any] struct {
	name   string
	ttl    time.Duration
	fetch  func(ctx context.Context) ([]T, error)
	logger *slog.Logger

	group singleflight.Group

	mu        sync.RWMutex
	data      []T
	fetchedAt time.Time
	hasData   bool
}

func newSnapshotCache[T any](name string, ttl time.Duration, logger *slog.Logger, fetch func(ctx context.Context) ([]T, error)) *snapshotCache[T] {
	return &snapshotCache[T]{
		name:   name,
		ttl:    ttl,
		fetch:  fetch,
		logger: logger,
	}
}

// Get returns the current snapshot, refetching when it is absent or older
// than the TTL. The returned slice is shared; callers must treat it as
// read-only.
func (c *snapshotCache[T]) Get(ctx context.Context) []T {
	if data, ok := c.fresh(); ok {
		cacheHitsTotal.WithLabelValues(c.name).Inc()
		return data
	}
	cacheMissesTotal.WithLabelValues(c.name).Inc()

	v, _, _ := c.group.Do(c.name, func() (any, error) {
		// A concurrent caller may have refreshed while this one queued.
		if data, ok := c.fresh(); ok {
			return data, nil
		}

		data, err := c.fetch(ctx)
		if err != nil {
			c.mu.RLock()
			stale, hasStale := c.data, c.hasData
			c.mu.RUnlock()

			if hasStale {
				cacheFallbacksTotal.WithLabelValues(c.name).Inc()
				c.logger.Warn("upstream fetch failed, serving stale snapshot",
					"namespace", c.name, "error", err)
				return stale, nil
			}

			c.logger.Error("upstream fetch failed with no snapshot to fall back on",
				"namespace", c.name, "error", err)
			return []T{}, nil
		}

		c.mu.Lock()
		c.data = data
		c.fetchedAt = time.Now()
		c.hasData = true
		c.mu.Unlock()

		return data, nil
	})

	return v.([]T)
}

// Invalidate forces the next Get to refetch. The old snapshot is kept so the
// stale-on-error fallback still applies if that refetch fails.
func (c *snapshotCache[T]) Invalidate() {
	c.mu.Lock()
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

func (c *snapshotCache[T]) fresh() ([]T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.hasData && time.Since(c.fetchedAt) < c.ttl {
		return c.data, true
	}
	return nil, false
}
