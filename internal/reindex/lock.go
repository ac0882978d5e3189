package reindex

import (
	"context"
	"time"
)

type LockStatus string

const (
	LockLocked LockStatus = "LOCKED"
	LockDone   LockStatus = "DONE"
	LockError  LockStatus = "ERROR"
)

// Lock is the clear-lock record of one reindex run.
type Lock struct {
	RunID     string
	Status    LockStatus
	CreatedAt time.Time
}

// Abandoned reports whether followers may purge the record: the leader
// failed, or it has held the lock longer than ttl.
func (l Lock) Abandoned(now time.Time, ttl time.Duration) bool {
	switch l.Status {
	case LockError:
		return true
	case LockLocked:
		return now.Sub(l.CreatedAt) > ttl
	default:
		return false
	}
}

type LockStore interface {
	// InsertIfAbsent stores l unless a record for l.RunID exists. It
	// returns nil when l was inserted, otherwise the existing record.
	InsertIfAbsent(ctx context.Context, l Lock) (*Lock, error)
	// Get returns the record for runID, or nil if there is none.
	Get(ctx context.Context, runID string) (*Lock, error)
	// SetStatus moves the LOCKED record identified by owned (run id and
	// creation time) to status. It reports false, changing nothing, when
	// that record was purged or replaced by another holder.
	SetStatus(ctx context.Context, owned Lock, status LockStatus) (bool, error)
	// DeleteIfUnchanged removes the record only if it still equals
	// observed, so a lock that was released or re-acquired in the meantime
	// survives. It reports whether a record was deleted.
	DeleteIfUnchanged(ctx context.Context, observed Lock) (bool, error)
}
