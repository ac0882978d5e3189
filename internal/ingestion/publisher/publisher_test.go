package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
	err    error
	block  bool
}

func (b *recordingBus) Publish(ctx context.Context, e events.Event) error {
	if b.block {
		<-ctx.Done()
		return ctx.Err()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, e)
	return nil
}

func request(id int64, content string) *ingestion.IngestRequest {
	return &ingestion.IngestRequest{ID: &id, Title: "Title", Author: "Jane Doe", Content: content}
}

func TestIngestStoresAndPublishes(t *testing.T) {
	ctx := context.Background()
	docs := document.NewMemoryStore()
	bus := &recordingBus{}
	p := New(docs, bus)

	resp, err := p.Ingest(ctx, request(42, "Cats and Dogs"))
	require.NoError(t, err)
	assert.Equal(t, &ingestion.IngestResponse{DocumentID: 42, Created: true, Status: "UNINDEXED", Published: true}, resp)
	assert.Equal(t, []events.Event{events.DocumentIngested(42)}, bus.events)

	stored, err := docs.FindByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", stored.Author)
	assert.Equal(t, document.StatusUnindexed, stored.Status)
}

func TestIngestExistingKeepsStatus(t *testing.T) {
	ctx := context.Background()
	docs := document.NewMemoryStore()
	p := New(docs, &recordingBus{})

	_, err := p.Ingest(ctx, request(7, "first"))
	require.NoError(t, err)
	_, err = docs.ConditionalUpdateStatus(ctx, 7, []document.Status{document.StatusUnindexed}, document.StatusIndexing, document.Fields{StartedAt: time.Now()})
	require.NoError(t, err)

	resp, err := p.Ingest(ctx, request(7, "second"))
	require.NoError(t, err)
	assert.False(t, resp.Created)
	assert.Equal(t, "INDEXING", resp.Status)
}

func TestIngestRejectsInvalid(t *testing.T) {
	bus := &recordingBus{}
	p := New(document.NewMemoryStore(), bus)

	_, err := p.Ingest(context.Background(), request(1, "   "))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Empty(t, bus.events)
}

func TestIngestPublishFailureKeepsDocument(t *testing.T) {
	ctx := context.Background()
	docs := document.NewMemoryStore()
	p := New(docs, &recordingBus{err: errors.New("broker down")})

	resp, err := p.Ingest(ctx, request(3, "content"))
	require.NoError(t, err)
	assert.False(t, resp.Published)

	_, err = docs.FindByID(ctx, 3)
	assert.NoError(t, err)
}

func TestIngestPublishTimeout(t *testing.T) {
	p := New(document.NewMemoryStore(), &recordingBus{block: true}).WithPublishTimeout(20 * time.Millisecond)

	start := time.Now()
	resp, err := p.Ingest(context.Background(), request(5, "content"))
	require.NoError(t, err)
	assert.False(t, resp.Published)
	assert.Less(t, time.Since(start), time.Second)
}
