package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"ingest", "reindex", "status", "search", "loadtest"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	ingest, _, err := root.Find([]string{"ingest"})
	require.NoError(t, err)
	for _, flag := range []string{"id", "file", "title", "author", "language", "release-date"} {
		assert.NotNil(t, ingest.Flags().Lookup(flag), flag)
	}

	search, _, err := root.Find([]string{"search"})
	require.NoError(t, err)
	assert.Error(t, search.Args(search, nil))
	assert.NoError(t, search.Args(search, []string{"cats", "dogs"}))

	status, _, err := root.Find([]string{"status"})
	require.NoError(t, err)
	assert.Error(t, status.Args(status, []string{"1", "2"}))
}

func TestReadContent(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("from stdin"))
	got, err := readContent(cmd, "-")
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)

	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("from file"), 0o600))
	got, err = readContent(cmd, path)
	require.NoError(t, err)
	assert.Equal(t, "from file", got)

	_, err = readContent(cmd, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestRunLoad(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "miss" {
			_, _ = w.Write([]byte(`{"count":0}`))
			return
		}
		_, _ = w.Write([]byte(`{"count":3}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	stats := newLoadStats()
	require.NoError(t, runLoad(ctx, srv.Client(), srv.URL, []string{"hit", "miss"}, 2, stats))

	report := stats.report(100 * time.Millisecond)
	assert.Positive(t, report.Requests)
	assert.Zero(t, report.Errors)
	assert.Positive(t, report.EmptyHits)
	assert.Equal(t, report.Requests, report.StatusCodes["200"])
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(sorted, 50))
	assert.Equal(t, time.Duration(10), percentile(sorted, 99))
	assert.Equal(t, time.Duration(0), percentile(nil, 50))
}
