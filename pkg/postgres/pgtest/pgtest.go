// Package pgtest opens a throwaway PostgreSQL connection for integration
// tests and skips the test when no server is reachable.
//
// Run with:
//
//	go test -tags=integration ./...
package pgtest

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/postgres"
)

// Open connects, applies the given schema and registers cleanup of tables.
func Open(t *testing.T, schema string, tables ...string) *postgres.Client {
	t.Helper()
	db, err := postgres.New(Config())
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.Migrate(ctx, schema); err != nil {
		db.Close()
		t.Fatalf("migrating schema: %v", err)
	}
	truncate := func() {
		for _, table := range tables {
			if _, err := db.DB.Exec(`TRUNCATE ` + table); err != nil {
				t.Logf("truncating %s: %v", table, err)
			}
		}
	}
	truncate()
	t.Cleanup(func() {
		truncate()
		db.Close()
	})
	return db
}

func Config() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "docsearch_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "docsearch"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
