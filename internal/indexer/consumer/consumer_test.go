package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIndexer func(ctx context.Context, id int64) (indexer.Outcome, error)

func (f stubIndexer) IndexDocument(ctx context.Context, id int64) (indexer.Outcome, error) {
	return f(ctx, id)
}

func TestHandleRecoversPanic(t *testing.T) {
	ic := New(stubIndexer(func(context.Context, int64) (indexer.Outcome, error) {
		panic("tokenizer exploded")
	}))
	assert.NoError(t, ic.Handle(context.Background(), events.DocumentIngested(1)))
}

func TestHandleReturnsClaimErrors(t *testing.T) {
	boom := errors.New("database is down")
	ic := New(stubIndexer(func(context.Context, int64) (indexer.Outcome, error) {
		return indexer.OutcomeSkipped, boom
	}))
	assert.ErrorIs(t, ic.Handle(context.Background(), events.DocumentIngested(1)), boom)
}

func TestFailuresDoNotStopOtherDocuments(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewUnregistered()
	docs := document.NewMemoryStore()
	index := shard.NewMemoryStore()
	bus := events.NewMemoryBus(m)
	coord := indexer.New(docs, index, bus, resilience.RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond}, m)

	for _, d := range []*document.Document{
		{ID: 1, Content: "alpha beta"},
		{ID: 2, Content: ""},
		{ID: 3, Content: "beta gamma"},
	} {
		_, err := docs.Save(ctx, d)
		require.NoError(t, err)
	}

	var mu sync.Mutex
	var indexed []int64
	bus.Subscribe(events.KindDocumentIndexed, func(_ context.Context, e events.Event) error {
		mu.Lock()
		indexed = append(indexed, e.DocumentID)
		mu.Unlock()
		return nil
	})
	// two competing workers
	New(coord).Register(bus)
	New(coord).Register(bus)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = bus.Run(ctx)
	}()

	require.NoError(t, bus.PublishRaw(ctx, events.KindDocumentIngested, []byte(`not json`)))
	for _, id := range []int64{1, 2, 3, 1, 3} {
		require.NoError(t, bus.Publish(ctx, events.DocumentIngested(id)))
	}
	bus.Wait()
	cancel()
	<-done

	counts, err := docs.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[document.StatusDone])
	assert.Equal(t, int64(1), counts[document.StatusError])

	mu.Lock()
	assert.ElementsMatch(t, []int64{1, 3}, indexed)
	mu.Unlock()

	got, err := index.GetPostings(context.Background(), "beta")
	require.NoError(t, err)
	assert.Equal(t, map[int64]struct{}{1: {}, 3: {}}, got)
}
