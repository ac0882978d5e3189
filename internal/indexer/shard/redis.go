package shard

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/redis"
	"golang.org/x/sync/errgroup"
)

// RedisStore keeps each term as a Redis set under <prefix>:{<shard>}:<term>.
// The hash tag pins a shard to one cluster slot, so a shard's pipeline never
// crosses nodes.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: keyPrefix,
		logger: slog.Default().With("component", "shard-store", "backend", "redis"),
	}
}

func (s *RedisStore) key(shardName, term string) string {
	return fmt.Sprintf("%s:{%s}:%s", s.prefix, shardName, term)
}

func (s *RedisStore) UpsertPostings(ctx context.Context, term string, docID int64) error {
	return s.BulkUpsert(ctx, map[string]struct{}{term: {}}, docID)
}

func (s *RedisStore) BulkUpsert(ctx context.Context, terms map[string]struct{}, docID int64) error {
	g, ctx := errgroup.WithContext(ctx)
	for name, bucket := range Group(terms) {
		g.Go(func() error {
			keys := make([]string, len(bucket))
			for i, term := range bucket {
				keys[i] = s.key(name, term)
			}
			if err := s.client.AddToSets(ctx, keys, docID); err != nil {
				return fmt.Errorf("writing postings to shard %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *RedisStore) GetPostings(ctx context.Context, term string) (map[int64]struct{}, error) {
	term = Normalize(term)
	out := make(map[int64]struct{})
	if term == "" {
		return out, nil
	}
	members, err := s.client.Members(ctx, s.key(For(term), term))
	if err != nil {
		return nil, fmt.Errorf("reading postings for %q: %w", term, err)
	}
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			s.logger.Warn("skipping malformed posting", "term", term, "member", m)
			continue
		}
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *RedisStore) ClearAll(ctx context.Context) error {
	n, err := s.client.FlushByPattern(ctx, s.prefix+":*")
	if err != nil {
		return fmt.Errorf("clearing postings: %w", err)
	}
	s.logger.Info("index cleared", "keys", n)
	return nil
}

func (s *RedisStore) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64, len(Names))
	for _, name := range Names {
		n, err := s.client.CountByPattern(ctx, fmt.Sprintf("%s:{%s}:*", s.prefix, name))
		if err != nil {
			return nil, fmt.Errorf("counting shard %s: %w", name, err)
		}
		stats[name] = n
	}
	return stats, nil
}
