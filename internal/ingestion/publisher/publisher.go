// Package publisher stores ingested documents and announces them on the
// event bus so an indexer can claim them.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/resilience"
)

const defaultPublishTimeout = 5 * time.Second

type Publisher struct {
	docs           document.Store
	bus            events.Publisher
	publishTimeout time.Duration
	logger         *slog.Logger
}

func New(docs document.Store, bus events.Publisher) *Publisher {
	return &Publisher{
		docs:           docs,
		bus:            bus,
		publishTimeout: defaultPublishTimeout,
		logger:         slog.Default().With("component", "publisher"),
	}
}

// WithPublishTimeout bounds how long Ingest waits on the bus.
func (p *Publisher) WithPublishTimeout(d time.Duration) *Publisher {
	p.publishTimeout = d
	return p
}

// Ingest validates and upserts the document, then publishes
// document.ingested. A failed publish is not an error: the row is stored as
// UNINDEXED and the next reindex picks it up.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	if err := validator.ValidateIngestRequest(req); err != nil {
		return nil, err
	}
	doc := req.Document()

	created, err := p.docs.Save(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("saving document %d: %w", doc.ID, err)
	}
	stored, err := p.docs.FindByID(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("reading back document %d: %w", doc.ID, err)
	}

	resp := &ingestion.IngestResponse{
		DocumentID: doc.ID,
		Created:    created,
		Status:     stored.Status.String(),
	}

	err = resilience.WithTimeout(ctx, p.publishTimeout, "publish document.ingested", func(ctx context.Context) error {
		return p.bus.Publish(ctx, events.DocumentIngested(doc.ID))
	})
	if err != nil {
		p.logger.Error("failed to publish, document left for reindex",
			"doc_id", doc.ID,
			"error", err,
		)
		return resp, nil
	}
	resp.Published = true

	p.logger.Info("document ingested", "doc_id", doc.ID, "created", created, "status", resp.Status)
	return resp, nil
}
