package document

import (
	"context"
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/errors"
)

// MemoryStore is a Store held in process memory. A single mutex makes every
// conditional update atomic, which is the same guarantee PostgresStore gets
// from row locks.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[int64]*Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[int64]*Document)}
}

func clone(doc *Document) *Document {
	c := *doc
	if doc.IndexStartedAt != nil {
		t := *doc.IndexStartedAt
		c.IndexStartedAt = &t
	}
	if doc.IndexFinishedAt != nil {
		t := *doc.IndexFinishedAt
		c.IndexFinishedAt = &t
	}
	return &c
}

func (s *MemoryStore) FindByID(_ context.Context, id int64) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %d: %w", id, apperrors.ErrDocumentNotFound)
	}
	return clone(doc), nil
}

func (s *MemoryStore) FindByIDs(_ context.Context, ids []int64) ([]*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Document
	for _, id := range ids {
		if doc, ok := s.docs[id]; ok {
			out = append(out, clone(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, doc *Document) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.docs[doc.ID]
	if !ok {
		fresh := clone(doc)
		fresh.Status = StatusUnindexed
		fresh.IndexStartedAt, fresh.IndexFinishedAt, fresh.IndexError = nil, nil, ""
		s.docs[doc.ID] = fresh
		return true, nil
	}
	existing.Title = doc.Title
	existing.Author = doc.Author
	existing.Language = doc.Language
	existing.ReleaseDate = doc.ReleaseDate
	existing.Content = doc.Content
	return false, nil
}

func (s *MemoryStore) UpdateMetadata(_ context.Context, id int64, md Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("document %d: %w", id, apperrors.ErrDocumentNotFound)
	}
	doc.Title, doc.Author, doc.Language, doc.ReleaseDate = md.Title, md.Author, md.Language, md.ReleaseDate
	return nil
}

func (s *MemoryStore) ConditionalUpdateStatus(_ context.Context, id int64, expected []Status, next Status, f Fields) (*Document, error) {
	if err := checkTransitions(expected, next); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok || !containsStatus(expected, doc.Status) {
		return nil, nil
	}
	prior := clone(doc)
	doc.Status = next
	if started := timePtr(f.StartedAt); started != nil {
		doc.IndexStartedAt = started
	}
	doc.IndexFinishedAt = timePtr(f.FinishedAt)
	doc.IndexError = f.Error
	return prior, nil
}

func (s *MemoryStore) ResetAllStatus(_ context.Context, from []Status, to Status) (int64, error) {
	if err := checkTransitions(from, to); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, doc := range s.docs {
		if containsStatus(from, doc.Status) {
			doc.Status = to
			doc.IndexStartedAt, doc.IndexFinishedAt, doc.IndexError = nil, nil, ""
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ClaimBatch(_ context.Context, statusIn []Status, next Status, limit int, f Fields) ([]*Document, error) {
	if err := checkTransitions(statusIn, next); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: batch limit must be positive", apperrors.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var eligible []int64
	for id, doc := range s.docs {
		if containsStatus(statusIn, doc.Status) {
			eligible = append(eligible, id)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i] < eligible[j] })
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	claimed := make([]*Document, 0, len(eligible))
	for _, id := range eligible {
		doc := s.docs[id]
		doc.Status = next
		doc.IndexStartedAt = timePtr(f.StartedAt)
		doc.IndexFinishedAt, doc.IndexError = nil, ""
		claimed = append(claimed, clone(doc))
	}
	return claimed, nil
}

func (s *MemoryStore) FilterByMetadata(_ context.Context, ids []int64, f Filter) ([]int64, error) {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for _, id := range ids {
		if doc, ok := s.docs[id]; ok && f.Matches(doc) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *MemoryStore) CountByStatus(_ context.Context) (map[Status]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[Status]int64)
	for _, doc := range s.docs {
		counts[Status(doc.Status.String())]++
	}
	return counts, nil
}
