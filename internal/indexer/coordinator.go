// Package indexer drives a document through UNINDEXED -> INDEXING ->
// DONE|ERROR. The claim is a single conditional update in the document
// store; it is the only thing that stops two workers, or two deliveries of
// the same event, from indexing one document twice.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/resilience"
)

// Outcome is what happened to a document handed to the coordinator.
type Outcome int

const (
	// OutcomeSkipped means the claim was lost: another worker owns the
	// document, or it is not UNINDEXED.
	OutcomeSkipped Outcome = iota
	OutcomeIndexed
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIndexed:
		return "indexed"
	case OutcomeFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Claim paths, used as a metric label.
const (
	PathEvent = "event"
	PathBatch = "batch"
)

type Coordinator struct {
	docs      document.Store
	index     shard.Store
	publisher events.Publisher
	retry     resilience.RetryConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func New(docs document.Store, index shard.Store, publisher events.Publisher, retry resilience.RetryConfig, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		docs:      docs,
		index:     index,
		publisher: publisher,
		retry:     retry,
		metrics:   m,
		logger:    slog.Default().With("component", "indexer"),
		now:       time.Now,
	}
}

// Claim moves id from UNINDEXED to INDEXING and returns the document as it
// was before. ok is false when the document is missing or in any other
// status; nothing is changed then.
func (c *Coordinator) Claim(ctx context.Context, id int64) (doc *document.Document, ok bool, err error) {
	doc, err = c.docs.ConditionalUpdateStatus(ctx, id,
		[]document.Status{document.StatusUnindexed}, document.StatusIndexing,
		document.Fields{StartedAt: c.now()})
	switch {
	case err != nil:
		c.metrics.ClaimsTotal.WithLabelValues("error", PathEvent).Inc()
		return nil, false, fmt.Errorf("claiming document %d: %w", id, err)
	case doc == nil:
		c.metrics.ClaimsTotal.WithLabelValues("rejected", PathEvent).Inc()
		return nil, false, nil
	default:
		c.metrics.ClaimsTotal.WithLabelValues("claimed", PathEvent).Inc()
		return doc, true, nil
	}
}

// Process tokenizes the document body.
func (c *Coordinator) Process(doc *document.Document) (map[string]struct{}, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, fmt.Errorf("document %d: %w", doc.ID, apperrors.ErrContentMissing)
	}
	return tokenizer.Tokenize(doc.Content), nil
}

// Commit writes the postings of a claimed document, retrying transient
// write failures. On success the document becomes DONE and document.indexed
// is published. If the write keeps failing the document becomes ERROR, no
// event is published, and the write error is returned.
func (c *Coordinator) Commit(ctx context.Context, id int64, terms map[string]struct{}) error {
	_, err := c.commit(ctx, id, terms)
	return err
}

// commit reports whether the document's final status was written, which
// is true for a write failure that was recorded as ERROR.
func (c *Coordinator) commit(ctx context.Context, id int64, terms map[string]struct{}) (recorded bool, err error) {
	err = resilience.Retry(ctx, "bulk upsert postings", c.retry, func() error {
		return c.index.BulkUpsert(ctx, terms, id)
	})
	if err != nil {
		c.metrics.DocsFailedTotal.WithLabelValues("write_failed").Inc()
		if markErr := c.markFailed(ctx, id, err); markErr != nil {
			return false, errors.Join(err, markErr)
		}
		return true, err
	}
	for name, bucket := range shard.Group(terms) {
		c.metrics.PostingsWritten.WithLabelValues(name).Add(float64(len(bucket)))
	}

	prior, err := c.docs.ConditionalUpdateStatus(ctx, id,
		[]document.Status{document.StatusIndexing}, document.StatusDone,
		document.Fields{FinishedAt: c.now()})
	if err != nil {
		return false, fmt.Errorf("marking document %d done: %w", id, err)
	}
	if prior == nil {
		c.logger.Warn("document left INDEXING before commit finished", "doc_id", id)
		return true, nil
	}
	c.metrics.DocsIndexedTotal.Inc()

	if err := c.publisher.Publish(ctx, events.DocumentIndexed(id)); err != nil {
		c.logger.Error("failed to publish document.indexed", "doc_id", id, "error", err)
	}
	return true, nil
}

// markFailed records err on a document that is still INDEXING.
func (c *Coordinator) markFailed(ctx context.Context, id int64, cause error) error {
	_, err := c.docs.ConditionalUpdateStatus(ctx, id,
		[]document.Status{document.StatusIndexing}, document.StatusError,
		document.Fields{FinishedAt: c.now(), Error: cause.Error()})
	if err != nil {
		c.logger.Error("failed to record indexing error", "doc_id", id, "cause", cause, "error", err)
		return fmt.Errorf("marking document %d failed: %w", id, err)
	}
	c.logger.Warn("document indexing failed", "doc_id", id, "error", cause)
	return nil
}

// Complete runs Process and Commit on a document the caller has already
// claimed. Indexing failures end up on the document as ERROR and are
// reported through the Outcome; the returned error is non-nil only when
// the status itself could not be written.
func (c *Coordinator) Complete(ctx context.Context, doc *document.Document) (Outcome, error) {
	start := c.now()
	defer func() {
		c.metrics.IndexLatency.Observe(time.Since(start).Seconds())
	}()

	terms, err := c.Process(doc)
	if err != nil {
		c.metrics.DocsFailedTotal.WithLabelValues("content_missing").Inc()
		return OutcomeFailed, c.markFailed(ctx, doc.ID, err)
	}
	recorded, err := c.commit(ctx, doc.ID, terms)
	if err != nil {
		if recorded {
			return OutcomeFailed, nil
		}
		return OutcomeFailed, err
	}
	c.logger.Debug("document indexed", "doc_id", doc.ID, "terms", len(terms))
	return OutcomeIndexed, nil
}

// IndexDocument claims id and, if the claim is won, completes it. Errors
// are returned only for claim-time storage failures, so the event can be
// delivered again; the claim absorbs any duplicate.
func (c *Coordinator) IndexDocument(ctx context.Context, id int64) (Outcome, error) {
	doc, ok, err := c.Claim(ctx, id)
	if err != nil {
		return OutcomeSkipped, err
	}
	if !ok {
		c.logger.Debug("claim not won, skipping", "doc_id", id)
		return OutcomeSkipped, nil
	}
	return c.Complete(ctx, doc)
}
