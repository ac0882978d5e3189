// Package searcher answers boolean AND queries over the sharded index and
// narrows the matches with document metadata. There is no ranking: results
// come back in ascending document id order.
package searcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/indexer/shard"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/metrics"
)

type Result struct {
	DocumentID int64  `json:"documentId"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	Language   string `json:"language"`
	Year       string `json:"year"`
}

type Response struct {
	Query   string          `json:"query"`
	Filters document.Filter `json:"filters"`
	Count   int             `json:"count"`
	Results []Result        `json:"results"`
}

type Engine struct {
	index    shard.Store
	docs     document.Store
	maxTerms int
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New builds an engine. maxTerms <= 0 means no limit on query terms.
func New(index shard.Store, docs document.Store, maxTerms int, m *metrics.Metrics) *Engine {
	return &Engine{
		index:    index,
		docs:     docs,
		maxTerms: maxTerms,
		metrics:  m,
		logger:   slog.Default().With("component", "query-engine"),
	}
}

// QueryTerms splits a query on whitespace and normalizes each term the way
// the index keys were written. Repeated terms are kept once.
func QueryTerms(query string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, raw := range strings.Fields(query) {
		term := shard.Normalize(raw)
		if term == "" {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return terms
}

// SearchTerm returns the ids of documents containing every query term.
// It stops reading postings as soon as the running intersection is empty.
func (e *Engine) SearchTerm(ctx context.Context, query string) ([]int64, error) {
	terms := QueryTerms(query)
	if e.maxTerms > 0 && len(terms) > e.maxTerms {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"query has %d terms, at most %d allowed", len(terms), e.maxTerms)
	}
	if len(terms) == 0 {
		return []int64{}, nil
	}

	result, err := e.index.GetPostings(ctx, terms[0])
	if err != nil {
		return nil, fmt.Errorf("%w: postings for %q: %v", apperrors.ErrShardUnavailable, terms[0], err)
	}
	for _, term := range terms[1:] {
		if len(result) == 0 {
			break
		}
		postings, err := e.index.GetPostings(ctx, term)
		if err != nil {
			return nil, fmt.Errorf("%w: postings for %q: %v", apperrors.ErrShardUnavailable, term, err)
		}
		result = intersect(result, postings)
	}

	ids := make([]int64, 0, len(result))
	for id := range result {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func intersect(a, b map[int64]struct{}) map[int64]struct{} {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(map[int64]struct{}, len(a))
	for id := range a {
		if _, ok := b[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// ApplyMetadataFilters keeps the ids whose documents match every set
// filter. The result is always a subset of ids.
func (e *Engine) ApplyMetadataFilters(ctx context.Context, ids []int64, f document.Filter) ([]int64, error) {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.IsEmpty() || len(ids) == 0 {
		return ids, nil
	}
	filtered, err := e.docs.FilterByMetadata(ctx, ids, f)
	if err != nil {
		return nil, fmt.Errorf("filtering by metadata: %w", err)
	}
	return filtered, nil
}

// Search runs the term query, applies the filters and loads the metadata of
// the matching documents.
func (e *Engine) Search(ctx context.Context, query string, f document.Filter) (*Response, error) {
	f = f.Normalize()
	ids, err := e.SearchTerm(ctx, query)
	if err != nil {
		e.metrics.SearchQueries.WithLabelValues("error").Inc()
		return nil, err
	}
	ids, err = e.ApplyMetadataFilters(ctx, ids, f)
	if err != nil {
		e.metrics.SearchQueries.WithLabelValues("error").Inc()
		return nil, err
	}

	resp := &Response{Query: query, Filters: f, Results: []Result{}}
	if len(ids) > 0 {
		docs, err := e.docs.FindByIDs(ctx, ids)
		if err != nil {
			e.metrics.SearchQueries.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("loading documents: %w", err)
		}
		for _, d := range docs {
			resp.Results = append(resp.Results, Result{
				DocumentID: d.ID,
				Title:      d.Title,
				Author:     d.Author,
				Language:   d.Language,
				Year:       document.ExtractYear(d.ReleaseDate),
			})
		}
	}
	resp.Count = len(resp.Results)

	resultType := "hits"
	if resp.Count == 0 {
		resultType = "empty"
	}
	e.metrics.SearchQueries.WithLabelValues(resultType).Inc()
	e.metrics.SearchResults.Observe(float64(resp.Count))
	e.logger.Debug("query executed", "query", query, "count", resp.Count)
	return resp, nil
}
