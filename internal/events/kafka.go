package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/resilience"
	"golang.org/x/sync/errgroup"
)

// KafkaBus maps each kind to a topic. Queue kinds are consumed with the
// shared consumer group, so instances compete; broadcast kinds use a group
// per instance, so every instance sees every event.
type KafkaBus struct {
	cfg     config.KafkaConfig
	topics  map[Kind]string
	retry   resilience.RetryConfig
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu        sync.Mutex
	producers map[Kind]*kafka.Producer
	handlers  map[Kind][]Handler
}

func NewKafkaBus(cfg config.KafkaConfig, retry resilience.RetryConfig, m *metrics.Metrics) *KafkaBus {
	return &KafkaBus{
		cfg: cfg,
		topics: map[Kind]string{
			KindDocumentIngested: cfg.Topics.DocumentIngested,
			KindDocumentIndexed:  cfg.Topics.DocumentIndexed,
			KindReindexRequest:   cfg.Topics.ReindexRequest,
		},
		retry:     retry,
		metrics:   m,
		logger:    slog.Default().With("component", "kafka-bus", "instance", cfg.InstanceID),
		producers: make(map[Kind]*kafka.Producer),
		handlers:  make(map[Kind][]Handler),
	}
}

func (b *KafkaBus) producer(kind Kind) *kafka.Producer {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.producers[kind]
	if !ok {
		p = kafka.NewProducer(b.cfg, b.topics[kind])
		b.producers[kind] = p
	}
	return p
}

func (b *KafkaBus) Publish(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	err := b.producer(e.Kind).Publish(ctx, kafka.Message{Key: e.Key(), Value: e})
	status := "ok"
	if err != nil {
		status = "error"
	}
	b.metrics.EventsPublished.WithLabelValues(string(e.Kind), status).Inc()
	if err != nil {
		return fmt.Errorf("publishing %s: %w", e, err)
	}
	return nil
}

func (b *KafkaBus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

func (b *KafkaBus) subscription(kind Kind) kafka.Subscription {
	sub := kafka.Subscription{
		Topic:   b.topics[kind],
		GroupID: b.cfg.ConsumerGroup,
		Retry:   b.retry,
	}
	if kind.Broadcast() {
		sub.GroupID = b.cfg.ConsumerGroup + "-" + b.cfg.InstanceID
		sub.FromLatest = true
	}
	return sub
}

// Run consumes every subscribed kind until ctx is cancelled. Several
// handlers on one kind share a single consumer.
func (b *KafkaBus) Run(ctx context.Context) error {
	b.mu.Lock()
	handlers := make(map[Kind][]Handler, len(b.handlers))
	for k, hs := range b.handlers {
		handlers[k] = append([]Handler(nil), hs...)
	}
	b.mu.Unlock()
	if len(handlers) == 0 {
		return errors.New("kafka bus has no subscriptions")
	}

	g, ctx := errgroup.WithContext(ctx)
	for kind, hs := range handlers {
		sub := b.subscription(kind)
		handle := func(ctx context.Context, _ []byte, value []byte) error {
			for _, h := range hs {
				if err := dispatch(ctx, kind, value, h, b.metrics, b.logger); err != nil {
					return err
				}
			}
			return nil
		}
		consumer := kafka.NewConsumer(b.cfg, sub, handle)
		b.logger.Info("subscribing", "kind", kind, "topic", sub.Topic, "group", sub.GroupID, "handlers", len(hs))
		g.Go(func() error { return consumer.Start(ctx) })
	}
	return g.Wait()
}

func (b *KafkaBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for kind, p := range b.producers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s producer: %w", kind, err))
		}
	}
	b.producers = make(map[Kind]*kafka.Producer)
	return errors.Join(errs...)
}
