package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, withCache bool) *http.ServeMux {
	t.Helper()
	ctx := context.Background()
	m := metrics.NewUnregistered()
	docs := document.NewMemoryStore()
	index := shard.NewMemoryStore()
	for _, d := range []*document.Document{
		{ID: 1, Title: "One", Author: "Jane Doe", Language: "English", ReleaseDate: "2001"},
		{ID: 2, Title: "Two", Author: "John Roe", Language: "French", ReleaseDate: "1999"},
	} {
		_, err := docs.Save(ctx, d)
		require.NoError(t, err)
		require.NoError(t, index.UpsertPostings(ctx, "shared", d.ID))
	}

	var qc *cache.QueryCache
	if withCache {
		qc = cache.New(cache.NewLocalBackend(8, time.Minute), m)
	}
	mux := http.NewServeMux()
	New(searcher.New(index, docs, 4, m), qc, m).Routes(mux)
	return mux
}

func get(t *testing.T, mux *http.ServeMux, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestSearchEndpoint(t *testing.T) {
	mux := newServer(t, true)

	rec, body := get(t, mux, "/search?q=shared")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shared", body["query"])
	assert.Equal(t, float64(2), body["count"])

	rec, body = get(t, mux, "/api/v1/search?q=SHARED&author=doe")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
	results := body["results"].([]any)
	first := results[0].(map[string]any)
	assert.Equal(t, float64(1), first["documentId"])
	assert.Equal(t, "2001", first["year"])
	assert.Equal(t, map[string]any{"author": "doe"}, body["filters"])

	rec, body = get(t, mux, "/search?q=nothing+here")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, []any{}, body["results"])
}

func TestSearchRejectsBadInput(t *testing.T) {
	mux := newServer(t, false)
	for _, target := range []string{
		"/search",
		"/search?q=%20%20",
		"/search?q=shared&year=99",
		"/search?q=a1+b2+c3+d4+e5",
	} {
		rec, body := get(t, mux, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.NotEmpty(t, body["error"], target)
	}
}

func TestCacheEndpoints(t *testing.T) {
	mux := newServer(t, true)
	get(t, mux, "/search?q=shared")
	get(t, mux, "/search?q=shared")

	rec, body := get(t, mux, "/api/v1/cache/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["hits"])
	assert.Equal(t, float64(1), body["misses"])

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	disabled := newServer(t, false)
	rec, body = get(t, disabled, "/api/v1/cache/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disabled", body["status"])
}
