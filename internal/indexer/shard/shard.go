// Package shard stores the inverted index as term -> set of document ids,
// partitioned by the first letter of the term. Every backend adds postings
// with an atomic add-to-set primitive so concurrent writers never lose ids.
package shard

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"
)

// Other holds every term whose first character is not an ASCII letter.
const Other = "other"

// Names lists all shards: "a" through "z", then Other.
var Names = func() []string {
	names := make([]string, 0, 27)
	for c := 'a'; c <= 'z'; c++ {
		names = append(names, string(c))
	}
	return append(names, Other)
}()

// Normalize returns the index key for a term: trimmed and lower-cased.
func Normalize(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// For returns the shard of an already normalized term.
func For(term string) string {
	r, _ := utf8.DecodeRuneInString(term)
	if r >= 'a' && r <= 'z' {
		return string(r)
	}
	return Other
}

// Group normalizes terms, drops empty ones and buckets them by shard. Terms
// inside a bucket are sorted.
func Group(terms map[string]struct{}) map[string][]string {
	groups := make(map[string][]string)
	for term := range terms {
		term = Normalize(term)
		if term == "" {
			continue
		}
		s := For(term)
		groups[s] = append(groups[s], term)
	}
	for _, bucket := range groups {
		sort.Strings(bucket)
	}
	return groups
}

type Store interface {
	// UpsertPostings adds docID to the postings of term. Idempotent.
	UpsertPostings(ctx context.Context, term string, docID int64) error
	// BulkUpsert adds docID to every term, with one write per shard touched.
	BulkUpsert(ctx context.Context, terms map[string]struct{}, docID int64) error
	// GetPostings returns the postings of term; unseen terms give an empty set.
	GetPostings(ctx context.Context, term string) (map[int64]struct{}, error)
	// ClearAll removes every posting in every shard.
	ClearAll(ctx context.Context) error
	// Stats returns the number of distinct terms per shard.
	Stats(ctx context.Context) (map[string]int64, error)
}
