// Package app opens the stores shared by the indexer, searcher, ingestion
// service and searchctl from one Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/reindex"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/redis"
)

const migrateTimeout = 30 * time.Second

// Stores bundles the durable state every process works against. Redis is
// nil unless the index or the query cache needs it.
type Stores struct {
	DB    *postgres.Client
	Redis *pkgredis.Client
	Docs  document.Store
	Index shard.Store
	Locks reindex.LockStore
}

// Open connects to PostgreSQL, applies the schema when postgres.migrate is
// set, and builds the configured index backend.
func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	s := &Stores{
		DB:    db,
		Docs:  document.NewPostgresStore(db),
		Locks: reindex.NewPostgresLockStore(db),
	}

	if cfg.Postgres.Migrate {
		migrateCtx, cancel := context.WithTimeout(ctx, migrateTimeout)
		defer cancel()
		statements := []string{document.Schema, reindex.Schema}
		if cfg.Index.Backend == config.BackendPostgres {
			statements = append(statements, shard.Schema(cfg.Index.ShardTablePrefix))
		}
		if err := db.Migrate(migrateCtx, statements...); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrating schema: %w", err)
		}
		slog.Info("schema migrated", "index_backend", cfg.Index.Backend)
	}

	if cfg.Index.Backend == config.BackendRedis || cfg.Search.CacheBackend == config.CacheRedis {
		client, err := pkgredis.NewClient(cfg.Redis)
		switch {
		case err == nil:
			s.Redis = client
		case cfg.Index.Backend == config.BackendRedis:
			s.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		default:
			slog.Warn("redis unavailable, query cache falls back to compute", "error", err)
		}
	}

	switch cfg.Index.Backend {
	case config.BackendPostgres:
		index, err := shard.NewPostgresStore(db, cfg.Index.ShardTablePrefix)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Index = index
	case config.BackendRedis:
		s.Index = shard.NewRedisStore(s.Redis, cfg.Index.KeyPrefix)
	case config.BackendMemory:
		slog.Warn("in-memory index is private to this process")
		s.Index = shard.NewMemoryStore()
	default:
		s.Close()
		return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
	return s, nil
}

// QueryCache builds the configured cache, or nil when caching is off or its
// Redis backend could not be reached.
func (s *Stores) QueryCache(cfg *config.Config, m *metrics.Metrics) *cache.QueryCache {
	switch cfg.Search.CacheBackend {
	case config.CacheRedis:
		if s.Redis == nil {
			return nil
		}
		return cache.New(cache.NewRedisBackend(s.Redis, cfg.Redis.CacheTTL), m).
			WithComputeTimeout(cfg.Search.QueryTimeout)
	case config.CacheLocal:
		return cache.New(cache.NewLocalBackend(cfg.Search.LocalCacheSize, cfg.Redis.CacheTTL), m).
			WithComputeTimeout(cfg.Search.QueryTimeout)
	default:
		return nil
	}
}

// RegisterHealth adds dependency checks. PostgreSQL is critical; Redis is
// critical only when it holds the index.
func (s *Stores) RegisterHealth(checker *health.Checker, cfg *config.Config) {
	checker.Register("postgres", health.Ping(s.DB.Ping, true))
	if s.Redis != nil {
		checker.Register("redis", health.Ping(s.Redis.Ping, cfg.Index.Backend == config.BackendRedis))
	}
}

func (s *Stores) Close() error {
	var errs []error
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	if s.DB != nil {
		errs = append(errs, s.DB.Close())
	}
	return errors.Join(errs...)
}
