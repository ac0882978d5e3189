package shard

import (
	"context"
	"sync"
)

type memoryShard struct {
	mu       sync.RWMutex
	postings map[string]map[int64]struct{}
}

// MemoryStore keeps each shard behind its own lock.
type MemoryStore struct {
	shards map[string]*memoryShard
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{shards: make(map[string]*memoryShard, len(Names))}
	for _, name := range Names {
		s.shards[name] = &memoryShard{postings: make(map[string]map[int64]struct{})}
	}
	return s
}

func (s *MemoryStore) UpsertPostings(ctx context.Context, term string, docID int64) error {
	return s.BulkUpsert(ctx, map[string]struct{}{term: {}}, docID)
}

func (s *MemoryStore) BulkUpsert(_ context.Context, terms map[string]struct{}, docID int64) error {
	for name, bucket := range Group(terms) {
		sh := s.shards[name]
		sh.mu.Lock()
		for _, term := range bucket {
			set, ok := sh.postings[term]
			if !ok {
				set = make(map[int64]struct{})
				sh.postings[term] = set
			}
			set[docID] = struct{}{}
		}
		sh.mu.Unlock()
	}
	return nil
}

func (s *MemoryStore) GetPostings(_ context.Context, term string) (map[int64]struct{}, error) {
	term = Normalize(term)
	out := make(map[int64]struct{})
	if term == "" {
		return out, nil
	}
	sh := s.shards[For(term)]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	for id := range sh.postings[term] {
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *MemoryStore) ClearAll(_ context.Context) error {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.postings = make(map[string]map[int64]struct{})
		sh.mu.Unlock()
	}
	return nil
}

func (s *MemoryStore) Stats(_ context.Context) (map[string]int64, error) {
	stats := make(map[string]int64, len(s.shards))
	for name, sh := range s.shards {
		sh.mu.RLock()
		stats[name] = int64(len(sh.postings))
		sh.mu.RUnlock()
	}
	return stats, nil
}
