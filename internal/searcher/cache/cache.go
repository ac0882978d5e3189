// Package cache memoizes search responses. Identical concurrent queries are
// collapsed with singleflight; entries live in Redis (shared by every search
// instance) or in a per-process LRU. A Redis outage degrades to uncached
// searches behind a circuit breaker instead of failing them.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "search:"

// Backend stores encoded responses by key.
type Backend interface {
	// Get reports found=false for a missing or expired key.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	// Purge drops every cached response and returns how many were removed.
	Purge(ctx context.Context) (int64, error)
	Name() string
}

const defaultComputeTimeout = 5 * time.Second

type QueryCache struct {
	backend        Backend
	breaker        *resilience.CircuitBreaker
	group          singleflight.Group
	computeTimeout time.Duration
	metrics        *metrics.Metrics
	logger         *slog.Logger
	hits           atomic.Int64
	misses         atomic.Int64
}

func New(backend Backend, m *metrics.Metrics) *QueryCache {
	name := "query-cache-" + backend.Name()
	return &QueryCache{
		backend: backend,
		breaker: resilience.NewCircuitBreaker(name, resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			OnStateChange: func(name string, to resilience.State) {
				m.CircuitBreakState.WithLabelValues(name).Set(float64(to))
			},
		}),
		computeTimeout: defaultComputeTimeout,
		metrics:        m,
		logger:         slog.Default().With("component", "query-cache", "backend", backend.Name()),
	}
}

// WithComputeTimeout bounds a shared computation, which outlives the caller
// that started it.
func (c *QueryCache) WithComputeTimeout(d time.Duration) *QueryCache {
	if d > 0 {
		c.computeTimeout = d
	}
	return c
}

func (c *QueryCache) get(ctx context.Context, key string) (*searcher.Response, bool) {
	var (
		data  []byte
		found bool
	)
	err := c.breaker.Execute(func() error {
		var err error
		data, found, err = c.backend.Get(ctx, key)
		return err
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	if !found {
		return nil, false
	}
	var resp searcher.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return &resp, true
}

func (c *QueryCache) set(ctx context.Context, key string, resp *searcher.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, key, data)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached response for query and filters, or runs
// compute once per key across concurrent callers and caches its result.
// hit reports whether the response came from the cache.
//
// compute runs detached from any single caller's cancellation, bounded by
// the compute timeout; each caller stops waiting when its own ctx is done.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	filters document.Filter,
	compute func(ctx context.Context) (*searcher.Response, error),
) (resp *searcher.Response, hit bool, err error) {
	key := Key(query, filters)
	if resp, ok := c.get(ctx, key); ok {
		c.recordHit()
		return withQuery(resp, query), true, nil
	}
	c.recordMiss()

	ch := c.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
		defer cancel()
		if resp, ok := c.get(shared, key); ok {
			return resp, nil
		}
		resp, err := compute(shared)
		if err != nil {
			return nil, err
		}
		c.set(shared, key, resp)
		return resp, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return withQuery(res.Val.(*searcher.Response), query), false, nil
	}
}

// withQuery returns resp echoing the caller's query text, which may differ
// in case or spacing from the query that filled the entry.
func withQuery(resp *searcher.Response, query string) *searcher.Response {
	if resp.Query == query {
		return resp
	}
	cp := *resp
	cp.Query = query
	return &cp
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	c.metrics.CacheHitsTotal.Inc()
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	c.metrics.CacheMissesTotal.Inc()
}

func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.backend.Purge(ctx)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Register invalidates the cache whenever a document finishes indexing or
// a reindex starts.
func (c *QueryCache) Register(bus events.Bus) {
	handler := func(ctx context.Context, e events.Event) error {
		c.logger.Debug("invalidating on event", "event", e.String())
		return c.Invalidate(ctx)
	}
	bus.Subscribe(events.KindDocumentIndexed, handler)
	bus.Subscribe(events.KindReindexRequest, handler)
}

// Key identifies a query regardless of term order, case, repeats and
// spacing, since AND is commutative.
func Key(query string, f document.Filter) string {
	terms := searcher.QueryTerms(query)
	sort.Strings(terms)
	f = f.Normalize()
	raw := fmt.Sprintf("%s|author=%s|language=%s|year=%s",
		strings.Join(terms, ","),
		strings.ToLower(f.Author),
		strings.ToLower(f.Language),
		f.Year,
	)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
