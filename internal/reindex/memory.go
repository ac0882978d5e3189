package reindex

import (
	"context"
	"sync"
)

type MemoryLockStore struct {
	mu    sync.Mutex
	locks map[string]Lock
}

func NewMemoryLockStore() *MemoryLockStore {
	return &MemoryLockStore{locks: make(map[string]Lock)}
}

func (s *MemoryLockStore) InsertIfAbsent(_ context.Context, l Lock) (*Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.locks[l.RunID]; ok {
		return &existing, nil
	}
	s.locks[l.RunID] = l
	return nil, nil
}

func (s *MemoryLockStore) Get(_ context.Context, runID string) (*Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.locks[runID]; ok {
		return &existing, nil
	}
	return nil, nil
}

func (s *MemoryLockStore) SetStatus(_ context.Context, owned Lock, status LockStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[owned.RunID]
	if !ok || l.Status != LockLocked || !l.CreatedAt.Equal(owned.CreatedAt) {
		return false, nil
	}
	l.Status = status
	s.locks[owned.RunID] = l
	return true, nil
}

func (s *MemoryLockStore) DeleteIfUnchanged(_ context.Context, observed Lock) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.locks[observed.RunID]
	if !ok || current.Status != observed.Status || !current.CreatedAt.Equal(observed.CreatedAt) {
		return false, nil
	}
	delete(s.locks, observed.RunID)
	return true, nil
}
