package shard

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/redis"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor(t *testing.T) {
	assert.Equal(t, "c", For("cat"))
	assert.Equal(t, "z", For("zebra"))
	assert.Equal(t, Other, For("école"))
	assert.Equal(t, Other, For("42"))
	assert.Equal(t, Other, For(""))
	assert.Len(t, Names, 27)
}

func TestGroup(t *testing.T) {
	groups := Group(map[string]struct{}{"Cats": {}, " cow ": {}, "dogs": {}, "": {}, "  ": {}})
	assert.Equal(t, map[string][]string{
		"c": {"cats", "cow"},
		"d": {"dogs"},
	}, groups)
}

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(config.RedisConfig{Addr: mr.Addr(), PoolSize: 8})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "postings")
}

func backends(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  newRedisStore(t),
	}
}

func TestStoreContract(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) { exerciseStore(t, store) })
	}
}

// exerciseStore is shared with the postgres integration test.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	empty, err := s.GetPostings(ctx, "unseen")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, s.UpsertPostings(ctx, "Alice", 1))
	require.NoError(t, s.UpsertPostings(ctx, "alice", 1))
	got, err := s.GetPostings(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, map[int64]struct{}{1: {}}, got, "upsert is idempotent")

	require.NoError(t, s.BulkUpsert(ctx, map[string]struct{}{"alice": {}, "wonderland": {}, "école": {}}, 2))
	got, err = s.GetPostings(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, map[int64]struct{}{1: {}, 2: {}}, got)
	got, err = s.GetPostings(ctx, "école")
	require.NoError(t, err)
	assert.Equal(t, map[int64]struct{}{2: {}}, got)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["a"])
	assert.Equal(t, int64(1), stats["w"])
	assert.Equal(t, int64(1), stats[Other])

	require.NoError(t, s.ClearAll(ctx))
	got, err = s.GetPostings(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestConcurrentWritersKeepEveryID(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) { exerciseConcurrentWriters(t, store) })
	}
}

func exerciseConcurrentWriters(t *testing.T, s Store) {
	ctx := context.Background()
	const writers = 20
	var wg sync.WaitGroup
	for i := 1; i <= writers; i++ {
		wg.Add(1)
		go func(docID int64) {
			defer wg.Done()
			terms := map[string]struct{}{"shared": {}, fmt.Sprintf("own%d", docID): {}}
			assert.NoError(t, s.BulkUpsert(ctx, terms, docID))
		}(int64(i))
	}
	wg.Wait()

	got, err := s.GetPostings(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, got, writers)
	for i := int64(1); i <= writers; i++ {
		assert.Contains(t, got, i)
	}
}
