package reindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/postgres"
)

const Schema = `
CREATE TABLE IF NOT EXISTS reindex_locks (
	run_id     TEXT PRIMARY KEY,
	status     TEXT NOT NULL CHECK (status IN ('LOCKED', 'DONE', 'ERROR')),
	created_at TIMESTAMPTZ NOT NULL
);
`

// insertAttempts bounds the insert/read race where the existing record is
// deleted between our conflicting insert and the follow-up read.
const insertAttempts = 5

type PostgresLockStore struct {
	db *postgres.Client
}

func NewPostgresLockStore(db *postgres.Client) *PostgresLockStore {
	return &PostgresLockStore{db: db}
}

func (s *PostgresLockStore) InsertIfAbsent(ctx context.Context, l Lock) (*Lock, error) {
	for attempt := 0; attempt < insertAttempts; attempt++ {
		var runID string
		err := s.db.DB.QueryRowContext(ctx,
			`INSERT INTO reindex_locks (run_id, status, created_at) VALUES ($1, $2, $3)
			ON CONFLICT (run_id) DO NOTHING
			RETURNING run_id`,
			l.RunID, string(l.Status), l.CreatedAt.UTC()).Scan(&runID)
		if err == nil {
			return nil, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("inserting reindex lock %s: %w", l.RunID, err)
		}
		existing, err := s.Get(ctx, l.RunID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("%w: lock %s kept changing under insert", apperrors.ErrLockUnavailable, l.RunID)
}

func (s *PostgresLockStore) Get(ctx context.Context, runID string) (*Lock, error) {
	var (
		l      Lock
		status string
	)
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT run_id, status, created_at FROM reindex_locks WHERE run_id = $1`, runID).
		Scan(&l.RunID, &status, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading reindex lock %s: %w", runID, err)
	}
	l.Status = LockStatus(status)
	return &l, nil
}

func (s *PostgresLockStore) SetStatus(ctx context.Context, owned Lock, status LockStatus) (bool, error) {
	res, err := s.db.DB.ExecContext(ctx,
		`UPDATE reindex_locks SET status = $3
		WHERE run_id = $1 AND created_at = $2 AND status = 'LOCKED'`,
		owned.RunID, owned.CreatedAt.UTC(), string(status))
	if err != nil {
		return false, fmt.Errorf("setting reindex lock %s to %s: %w", owned.RunID, status, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("setting reindex lock %s to %s: %w", owned.RunID, status, err)
	}
	return n > 0, nil
}

func (s *PostgresLockStore) DeleteIfUnchanged(ctx context.Context, observed Lock) (bool, error) {
	res, err := s.db.DB.ExecContext(ctx,
		`DELETE FROM reindex_locks WHERE run_id = $1 AND status = $2 AND created_at = $3`,
		observed.RunID, string(observed.Status), observed.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("deleting reindex lock %s: %w", observed.RunID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting reindex lock %s: %w", observed.RunID, err)
	}
	return n > 0, nil
}
