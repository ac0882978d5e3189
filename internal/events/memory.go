package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	memoryBufferSize  = 1024
	memoryMaxAttempts = 3
)

type delivery struct {
	raw      []byte
	attempts int
}

type memorySubscriber struct {
	kind    Kind
	handler Handler
	ch      chan delivery
}

// MemoryBus is an in-process Bus with the same delivery semantics as
// KafkaBus: subscribers of a queue kind read from one shared channel, each
// subscriber of a broadcast kind gets its own. Events travel in wire form
// and go through Decode. A handler error redelivers the event, up to
// memoryMaxAttempts deliveries. Events of a kind nobody subscribed to are
// discarded.
type MemoryBus struct {
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu          sync.Mutex
	running     bool
	queues      map[Kind]chan delivery
	subscribers []*memorySubscriber
	pending     sync.WaitGroup
}

func NewMemoryBus(m *metrics.Metrics) *MemoryBus {
	return &MemoryBus{
		metrics: m,
		logger:  slog.Default().With("component", "memory-bus"),
		queues:  make(map[Kind]chan delivery),
	}
}

func (b *MemoryBus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &memorySubscriber{kind: kind, handler: h}
	if kind.Broadcast() {
		sub.ch = make(chan delivery, memoryBufferSize)
	} else {
		q, ok := b.queues[kind]
		if !ok {
			q = make(chan delivery, memoryBufferSize)
			b.queues[kind] = q
		}
		sub.ch = q
	}
	b.subscribers = append(b.subscribers, sub)
}

func (b *MemoryBus) Publish(ctx context.Context, e Event) error {
	raw, err := EncodeJSON(e)
	if err != nil {
		return err
	}
	err = b.PublishRaw(ctx, e.Kind, raw)
	status := "ok"
	if err != nil {
		status = "error"
	}
	b.metrics.EventsPublished.WithLabelValues(string(e.Kind), status).Inc()
	return err
}

// PublishRaw delivers an already encoded payload on kind's channel without
// validating it, as an external producer would.
func (b *MemoryBus) PublishRaw(ctx context.Context, kind Kind, raw []byte) error {
	targets := b.targets(kind)
	if len(targets) == 0 {
		b.logger.Debug("no subscribers, discarding event", "kind", kind)
		return nil
	}
	for _, ch := range targets {
		b.pending.Add(1)
		select {
		case ch <- delivery{raw: raw}:
		case <-ctx.Done():
			b.pending.Done()
			return fmt.Errorf("publishing %s: %w", kind, ctx.Err())
		}
	}
	return nil
}

func (b *MemoryBus) targets(kind Kind) []chan delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !kind.Broadcast() {
		if q, ok := b.queues[kind]; ok {
			return []chan delivery{q}
		}
		return nil
	}
	var out []chan delivery
	for _, sub := range b.subscribers {
		if sub.kind == kind {
			out = append(out, sub.ch)
		}
	}
	return out
}

// Run starts one worker per subscriber and blocks until ctx is cancelled.
func (b *MemoryBus) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return errors.New("memory bus already running")
	}
	b.running = true
	subs := append([]*memorySubscriber(nil), b.subscribers...)
	b.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, sub := range subs {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case d := <-sub.ch:
					b.deliver(ctx, sub, d)
				}
			}
		})
	}
	return g.Wait()
}

func (b *MemoryBus) deliver(ctx context.Context, sub *memorySubscriber, d delivery) {
	defer b.pending.Done()
	d.attempts++
	err := dispatch(ctx, sub.kind, d.raw, sub.handler, b.metrics, b.logger)
	if err == nil {
		return
	}
	if d.attempts >= memoryMaxAttempts || ctx.Err() != nil {
		b.logger.Error("giving up on event", "kind", sub.kind, "attempts", d.attempts, "error", err)
		return
	}
	b.logger.Warn("handler failed, redelivering", "kind", sub.kind, "attempt", d.attempts, "error", err)
	b.pending.Add(1)
	select {
	case sub.ch <- d:
	default:
		b.pending.Done()
		b.logger.Error("redelivery buffer full, dropping event", "kind", sub.kind)
	}
}

// Wait blocks until every published event, including events published by
// handlers while waiting, has been handled or given up on.
func (b *MemoryBus) Wait() {
	b.pending.Wait()
}

func (b *MemoryBus) Close() error {
	return nil
}
