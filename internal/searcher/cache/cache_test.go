package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/redis"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisBackend(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := pkgredis.NewClient(config.RedisConfig{Addr: mr.Addr(), PoolSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewRedisBackend(client, time.Minute), mr
}

func response(query string, ids ...int64) *searcher.Response {
	resp := &searcher.Response{Query: query, Results: []searcher.Result{}}
	for _, id := range ids {
		resp.Results = append(resp.Results, searcher.Result{DocumentID: id, Year: "unknown"})
	}
	resp.Count = len(resp.Results)
	return resp
}

func TestKeyIgnoresOrderCaseAndSpacing(t *testing.T) {
	assert.Equal(t, Key("alice wonderland", document.Filter{}), Key("  Wonderland ALICE alice", document.Filter{}))
	assert.Equal(t, Key("alice", document.Filter{Author: "Doe"}), Key("alice", document.Filter{Author: " doe "}))
	assert.NotEqual(t, Key("alice", document.Filter{}), Key("alice", document.Filter{Year: "2001"}))
	assert.NotEqual(t, Key("alice", document.Filter{Author: "x"}), Key("alice", document.Filter{Language: "x"}))
}

func TestGetOrCompute(t *testing.T) {
	redisBackend, _ := newRedisBackend(t)
	backends := map[string]Backend{
		"local": NewLocalBackend(16, time.Minute),
		"redis": redisBackend,
	}
	for name, backend := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := New(backend, metrics.NewUnregistered())
			calls := 0
			compute := func(context.Context) (*searcher.Response, error) {
				calls++
				return response("alice", 1, 2), nil
			}

			resp, hit, err := c.GetOrCompute(ctx, "alice", document.Filter{}, compute)
			require.NoError(t, err)
			assert.False(t, hit)
			assert.Equal(t, 2, resp.Count)

			resp, hit, err = c.GetOrCompute(ctx, "ALICE", document.Filter{}, compute)
			require.NoError(t, err)
			assert.True(t, hit)
			assert.Equal(t, "ALICE", resp.Query)
			assert.Equal(t, 1, calls)

			require.NoError(t, c.Invalidate(ctx))
			_, hit, err = c.GetOrCompute(ctx, "alice", document.Filter{}, compute)
			require.NoError(t, err)
			assert.False(t, hit)
			assert.Equal(t, 2, calls)

			hits, misses := c.Stats()
			assert.Equal(t, int64(1), hits)
			assert.Equal(t, int64(2), misses)
		})
	}
}

func TestConcurrentMissesComputeOnce(t *testing.T) {
	c := New(NewLocalBackend(16, time.Minute), metrics.NewUnregistered())
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (*searcher.Response, error) {
		calls.Add(1)
		<-release
		return response("cats dogs", 42), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, _, err := c.GetOrCompute(context.Background(), "cats dogs", document.Filter{}, compute)
			assert.NoError(t, err)
			assert.Equal(t, 1, resp.Count)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestCancelledCallerDoesNotFailCoalescedCallers(t *testing.T) {
	c := New(NewLocalBackend(16, time.Minute), metrics.NewUnregistered())
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (*searcher.Response, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return response("alice", 3), nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(firstCtx, "alice", document.Filter{}, compute)
		firstErr <- err
	}()
	<-started

	type result struct {
		resp *searcher.Response
		err  error
	}
	second := make(chan result, 1)
	go func() {
		resp, _, err := c.GetOrCompute(context.Background(), "alice", document.Filter{}, compute)
		second <- result{resp, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)

	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, 1, got.resp.Count)
	assert.Equal(t, int32(1), calls.Load())

	_, hit, err := c.GetOrCompute(context.Background(), "alice", document.Filter{}, compute)
	require.NoError(t, err)
	assert.True(t, hit, "the shared result is cached")
}

func TestSharedComputeIsBounded(t *testing.T) {
	c := New(NewLocalBackend(16, time.Minute), metrics.NewUnregistered()).WithComputeTimeout(10 * time.Millisecond)
	_, _, err := c.GetOrCompute(context.Background(), "slow", document.Filter{}, func(ctx context.Context) (*searcher.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestComputeErrorIsNotCached(t *testing.T) {
	c := New(NewLocalBackend(16, time.Minute), metrics.NewUnregistered())
	boom := errors.New("shard unavailable")
	_, _, err := c.GetOrCompute(context.Background(), "x", document.Filter{}, func(context.Context) (*searcher.Response, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, hit, err := c.GetOrCompute(context.Background(), "x", document.Filter{}, func(context.Context) (*searcher.Response, error) {
		return response("x"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisOutageFallsBackToCompute(t *testing.T) {
	backend, mr := newRedisBackend(t)
	c := New(backend, metrics.NewUnregistered())
	mr.Close()

	for i := 0; i < 8; i++ {
		resp, hit, err := c.GetOrCompute(context.Background(), "alice", document.Filter{}, func(context.Context) (*searcher.Response, error) {
			return response("alice", 1), nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, 1, resp.Count)
	}
}

func TestInvalidatedByEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := metrics.NewUnregistered()
	c := New(NewLocalBackend(16, time.Minute), m)
	bus := events.NewMemoryBus(m)
	c.Register(bus)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = bus.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	compute := func(context.Context) (*searcher.Response, error) { return response("alice", 1), nil }
	_, _, err := c.GetOrCompute(ctx, "alice", document.Filter{}, compute)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, events.DocumentIndexed(7)))
	bus.Wait()

	_, hit, err := c.GetOrCompute(ctx, "alice", document.Filter{}, compute)
	require.NoError(t, err)
	assert.False(t, hit)
}
