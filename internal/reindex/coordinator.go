// Package reindex rebuilds the whole index across every worker instance.
//
// A run has two phases. In the clear phase exactly one instance, the
// leader, wins the clear-lock record, wipes the index and resets finished
// documents to UNINDEXED; the others wait for the lock to reach DONE. In the
// rebuild phase every instance claims batches of UNINDEXED documents and
// indexes them; the per-document claim keeps the instances from colliding.
// A lock whose leader failed or outlived the TTL is purged and raced for
// again.
package reindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/metrics"
)

type Role string

const (
	RoleLeader   Role = "leader"
	RoleFollower Role = "follower"
)

// Completer indexes a document that has already been claimed.
type Completer interface {
	Complete(ctx context.Context, doc *document.Document) (indexer.Outcome, error)
}

type Result struct {
	RunID          string
	Role           Role
	Batches        int
	Indexed        int
	Failed         int
	LockRecoveries int
	Duration       time.Duration
}

type Coordinator struct {
	docs    document.Store
	index   shard.Store
	locks   LockStore
	indexer Completer
	cfg     config.ReindexConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func New(docs document.Store, index shard.Store, locks LockStore, ix Completer, cfg config.ReindexConfig, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		docs:    docs,
		index:   index,
		locks:   locks,
		indexer: ix,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "reindex"),
		now:     time.Now,
	}
}

// Run takes part in reindex run runID: the clear phase, then the batch
// rebuild. Only ctx cancellation interrupts the waits. A leader whose clear
// fails marks the lock ERROR and returns without rebuilding.
func (c *Coordinator) Run(ctx context.Context, runID string) (*Result, error) {
	start := c.now()
	logger := c.logger.With("run_id", runID)
	res := &Result{RunID: runID}

	role, recoveries, err := c.clearPhase(ctx, runID, logger)
	res.Role, res.LockRecoveries = role, recoveries
	if err != nil {
		c.metrics.ReindexRunsTotal.WithLabelValues(string(role), "clear_failed").Inc()
		return res, err
	}
	logger.Info("clear phase finished, rebuilding", "role", role, "lock_recoveries", recoveries)

	if err := c.rebuild(ctx, res, logger); err != nil {
		c.metrics.ReindexRunsTotal.WithLabelValues(string(role), "rebuild_failed").Inc()
		return res, err
	}
	res.Duration = c.now().Sub(start)
	c.metrics.ReindexRunsTotal.WithLabelValues(string(role), "ok").Inc()
	logger.Info("reindex run finished",
		"role", role,
		"batches", res.Batches,
		"indexed", res.Indexed,
		"failed", res.Failed,
		"duration", res.Duration,
	)
	return res, nil
}

// clearPhase returns once the index has been cleared for runID, by this
// instance or another.
func (c *Coordinator) clearPhase(ctx context.Context, runID string, logger *slog.Logger) (Role, int, error) {
	recoveries := 0
	waitStart := c.now()
	defer func() {
		c.metrics.LockWaitDuration.Observe(c.now().Sub(waitStart).Seconds())
	}()

	for {
		candidate := Lock{RunID: runID, Status: LockLocked, CreatedAt: c.now().UTC().Truncate(time.Microsecond)}
		prior, err := c.locks.InsertIfAbsent(ctx, candidate)
		if err != nil {
			return RoleFollower, recoveries, fmt.Errorf("acquiring reindex lock: %w", err)
		}
		if prior == nil {
			logger.Info("acquired reindex lock, clearing index")
			return RoleLeader, recoveries, c.clear(ctx, candidate, logger)
		}

		released, err := c.awaitRelease(ctx, *prior, logger)
		if err != nil {
			return RoleFollower, recoveries, err
		}
		if released {
			return RoleFollower, recoveries, nil
		}

		recoveries++
		c.metrics.LockRecoveries.Inc()
		if c.cfg.MaxLockRecoveries > 0 && recoveries > c.cfg.MaxLockRecoveries {
			logger.Error("reindex lock keeps being abandoned", "recoveries", recoveries, "ttl", c.cfg.LockTTL)
		} else {
			logger.Warn("reindex lock abandoned, retrying acquisition", "recoveries", recoveries)
		}
	}
}

// awaitRelease polls the lock until it is DONE (true) or abandoned or gone
// (false). An abandoned record is deleted before returning.
func (c *Coordinator) awaitRelease(ctx context.Context, observed Lock, logger *slog.Logger) (bool, error) {
	for {
		if observed.Status == LockDone {
			return true, nil
		}
		if observed.Abandoned(c.now(), c.cfg.LockTTL) {
			deleted, err := c.locks.DeleteIfUnchanged(ctx, observed)
			if err != nil {
				return false, fmt.Errorf("purging abandoned reindex lock: %w", err)
			}
			logger.Warn("purging abandoned reindex lock",
				"status", observed.Status,
				"age", c.now().Sub(observed.CreatedAt),
				"deleted", deleted,
			)
			return false, nil
		}

		timer := time.NewTimer(c.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}

		current, err := c.locks.Get(ctx, observed.RunID)
		if err != nil {
			return false, fmt.Errorf("polling reindex lock: %w", err)
		}
		if current == nil {
			return false, nil
		}
		observed = *current
	}
}

// clear wipes the index and releases owned as DONE. A lock that was taken
// over while clearing is left alone and the clear counts as failed.
func (c *Coordinator) clear(ctx context.Context, owned Lock, logger *slog.Logger) error {
	start := c.now()
	err := c.index.ClearAll(ctx)
	if err == nil {
		var n int64
		n, err = c.docs.ResetAllStatus(ctx,
			[]document.Status{document.StatusDone, document.StatusError}, document.StatusUnindexed)
		if err == nil {
			logger.Info("documents reset for rebuild", "documents", n)
		}
	}
	var released bool
	if err == nil {
		released, err = c.locks.SetStatus(ctx, owned, LockDone)
	}
	c.metrics.ClearDuration.Observe(c.now().Sub(start).Seconds())
	if err == nil && released {
		return nil
	}
	if err == nil {
		logger.Error("reindex lock was taken over during clear", "created_at", owned.CreatedAt)
		return fmt.Errorf("%w: run %s was recovered by another instance", apperrors.ErrLockUnavailable, owned.RunID)
	}

	logger.Error("clear phase failed, marking lock ERROR", "error", err)
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	held, markErr := c.locks.SetStatus(markCtx, owned, LockError)
	if markErr != nil {
		return errors.Join(fmt.Errorf("clearing index: %w", err), markErr)
	}
	if !held {
		logger.Warn("reindex lock already taken over, leaving it as is")
	}
	return fmt.Errorf("clearing index: %w", err)
}

// rebuild claims and indexes batches until a claim comes back empty.
func (c *Coordinator) rebuild(ctx context.Context, res *Result, logger *slog.Logger) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := c.docs.ClaimBatch(ctx,
			[]document.Status{document.StatusUnindexed}, document.StatusIndexing,
			c.cfg.BatchSize, document.Fields{StartedAt: c.now()})
		if err != nil {
			return fmt.Errorf("claiming batch: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}
		res.Batches++
		c.metrics.ReindexBatchSize.Observe(float64(len(batch)))
		c.metrics.ClaimsTotal.WithLabelValues("claimed", indexer.PathBatch).Add(float64(len(batch)))

		for _, doc := range batch {
			outcome, err := c.indexer.Complete(ctx, doc)
			if err != nil {
				logger.Error("failed to record document outcome", "doc_id", doc.ID, "error", err)
			}
			if outcome == indexer.OutcomeIndexed {
				res.Indexed++
			} else {
				res.Failed++
			}
		}
		logger.Debug("batch indexed", "batch", res.Batches, "size", len(batch), "first_id", batch[0].ID)
	}
}

// Register subscribes the coordinator to reindex.request on bus.
func (c *Coordinator) Register(bus events.Bus) {
	bus.Subscribe(events.KindReindexRequest, c.Handle)
}

// Handle runs a reindex for the event. Failures are logged, not returned:
// redelivering a broadcast would only rerun the same run, and a failed
// leader has already marked the lock for recovery by the other instances.
func (c *Coordinator) Handle(ctx context.Context, e events.Event) error {
	if _, err := c.Run(ctx, e.RunID); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Error("reindex run failed", "run_id", e.RunID, "error", err)
	}
	return nil
}
