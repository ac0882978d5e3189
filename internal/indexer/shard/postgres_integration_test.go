//go:build integration

package shard

import (
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/postgres/pgtest"
	"github.com/stretchr/testify/require"
)

func newPostgresStore(t *testing.T) *PostgresStore {
	const prefix = "test_postings_"
	tables := make([]string, 0, len(Names))
	for _, name := range Names {
		tables = append(tables, prefix+name)
	}
	db := pgtest.Open(t, Schema(prefix), strings.Join(tables, ", "))
	s, err := NewPostgresStore(db, prefix)
	require.NoError(t, err)
	return s
}

func TestPostgresStoreContract(t *testing.T) {
	exerciseStore(t, newPostgresStore(t))
}

func TestPostgresConcurrentWriters(t *testing.T) {
	exerciseConcurrentWriters(t, newPostgresStore(t))
}

func TestPostgresRejectsBadPrefix(t *testing.T) {
	_, err := NewPostgresStore(nil, "postings; DROP TABLE documents")
	require.Error(t, err)
}
