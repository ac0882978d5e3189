// Package consumer is the event-handler boundary in front of the indexing
// coordinator. Each document.ingested event is handled on its own: a bad
// document never stops the consumer loop.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/logger"
)

// Indexer is the part of indexer.Coordinator the consumer drives.
type Indexer interface {
	IndexDocument(ctx context.Context, id int64) (indexer.Outcome, error)
}

type IndexConsumer struct {
	indexer Indexer
	logger  *slog.Logger
}

func New(ix Indexer) *IndexConsumer {
	return &IndexConsumer{
		indexer: ix,
		logger:  logger.WithComponent("index-consumer"),
	}
}

// Register subscribes the consumer to document.ingested on bus.
func (ic *IndexConsumer) Register(bus events.Bus) {
	bus.Subscribe(events.KindDocumentIngested, ic.Handle)
}

// Handle indexes one document. It returns an error only when the claim
// could not be attempted, so the bus redelivers; a panic is logged and
// swallowed.
func (ic *IndexConsumer) Handle(ctx context.Context, e events.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ic.logger.Error("panic while indexing document",
				"doc_id", e.DocumentID,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			err = nil
		}
	}()

	outcome, err := ic.indexer.IndexDocument(ctx, e.DocumentID)
	if err != nil {
		ic.logger.Error("claim failed, leaving event for redelivery", "doc_id", e.DocumentID, "error", err)
		return err
	}
	ic.logger.Info("ingest event handled", "doc_id", e.DocumentID, "outcome", outcome.String())
	return nil
}
