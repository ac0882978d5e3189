package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/ingestion/publisher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopBus struct{}

func (nopBus) Publish(context.Context, events.Event) error { return nil }

func newMux() (*http.ServeMux, *document.MemoryStore) {
	docs := document.NewMemoryStore()
	mux := http.NewServeMux()
	New(publisher.New(docs, nopBus{}), docs).Routes(mux)
	return mux, docs
}

func do(mux *http.ServeMux, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestIngestAndGet(t *testing.T) {
	mux, _ := newMux()

	rec, body := do(mux, http.MethodPost, "/api/v1/documents",
		`{"id":42,"title":"Cats and Dogs","author":"Jane Doe","releaseDate":"May 2001","content":"Cats and Dogs"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, float64(42), body["documentId"])
	assert.Equal(t, true, body["created"])
	assert.Equal(t, true, body["published"])

	rec, body = do(mux, http.MethodGet, "/api/v1/documents/42", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "UNINDEXED", body["status"])
	assert.Equal(t, "Jane Doe", body["author"])
	assert.NotContains(t, body, "content")
}

func TestIngestRejectsBadBodies(t *testing.T) {
	mux, docs := newMux()

	rec, _ := do(mux, http.MethodPost, "/api/v1/documents", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := do(mux, http.MethodPost, "/api/v1/documents", `{"title":"no id"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	fields := body["fields"].(map[string]any)
	assert.Contains(t, fields, "id")
	assert.Contains(t, fields, "content")

	counts, err := docs.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestGetErrors(t *testing.T) {
	mux, _ := newMux()

	rec, _ := do(mux, http.MethodGet, "/api/v1/documents/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(mux, http.MethodGet, "/api/v1/documents/9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateMetadata(t *testing.T) {
	mux, docs := newMux()
	rec, _ := do(mux, http.MethodPost, "/api/v1/documents", `{"id":5,"author":"Old","content":"words here"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec, body := do(mux, http.MethodPatch, "/api/v1/documents/5", `{"title":"New","author":"Jane Doe","language":"English","releaseDate":"1999"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Jane Doe", body["author"])
	assert.Equal(t, "UNINDEXED", body["status"])

	stored, err := docs.FindByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "words here", stored.Content)
	assert.Equal(t, "1999", stored.ReleaseDate)

	rec, _ = do(mux, http.MethodPatch, "/api/v1/documents/77", `{"author":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
