package shard

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/postgres"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

var tablePrefixPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Schema returns the DDL for one postings table per shard.
func Schema(tablePrefix string) string {
	var b strings.Builder
	for _, name := range Names {
		fmt.Fprintf(&b, `CREATE TABLE IF NOT EXISTS %s (
	term   TEXT NOT NULL,
	doc_id BIGINT NOT NULL,
	PRIMARY KEY (term, doc_id)
);
`, tablePrefix+name)
	}
	return b.String()
}

// PostgresStore keeps each shard in its own table keyed by (term, doc_id).
// The primary key turns INSERT ... ON CONFLICT DO NOTHING into an atomic
// add-to-set.
type PostgresStore struct {
	db     *postgres.Client
	tables map[string]string
	logger *slog.Logger
}

func NewPostgresStore(db *postgres.Client, tablePrefix string) (*PostgresStore, error) {
	if !tablePrefixPattern.MatchString(tablePrefix) {
		return nil, fmt.Errorf("invalid shard table prefix %q", tablePrefix)
	}
	tables := make(map[string]string, len(Names))
	for _, name := range Names {
		tables[name] = pq.QuoteIdentifier(tablePrefix + name)
	}
	return &PostgresStore{
		db:     db,
		tables: tables,
		logger: slog.Default().With("component", "shard-store", "backend", "postgres"),
	}, nil
}

func (s *PostgresStore) UpsertPostings(ctx context.Context, term string, docID int64) error {
	return s.BulkUpsert(ctx, map[string]struct{}{term: {}}, docID)
}

func (s *PostgresStore) BulkUpsert(ctx context.Context, terms map[string]struct{}, docID int64) error {
	g, ctx := errgroup.WithContext(ctx)
	for name, bucket := range Group(terms) {
		g.Go(func() error {
			_, err := s.db.DB.ExecContext(ctx,
				`INSERT INTO `+s.tables[name]+` (term, doc_id)
				SELECT unnest($1::text[]), $2
				ON CONFLICT DO NOTHING`,
				pq.Array(bucket), docID)
			if err != nil {
				return fmt.Errorf("writing %d postings to shard %s: %w", len(bucket), name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *PostgresStore) GetPostings(ctx context.Context, term string) (map[int64]struct{}, error) {
	term = Normalize(term)
	out := make(map[int64]struct{})
	if term == "" {
		return out, nil
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT doc_id FROM `+s.tables[For(term)]+` WHERE term = $1`, term)
	if err != nil {
		return nil, fmt.Errorf("reading postings for %q: %w", term, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning posting: %w", err)
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating postings for %q: %w", term, err)
	}
	return out, nil
}

// ClearAll truncates every shard table in one statement, so readers see
// either the old index or an empty one.
func (s *PostgresStore) ClearAll(ctx context.Context) error {
	tables := make([]string, 0, len(Names))
	for _, name := range Names {
		tables = append(tables, s.tables[name])
	}
	if _, err := s.db.DB.ExecContext(ctx, `TRUNCATE `+strings.Join(tables, ", ")); err != nil {
		return fmt.Errorf("truncating shard tables: %w", err)
	}
	s.logger.Info("index cleared", "shards", len(tables))
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (map[string]int64, error) {
	parts := make([]string, 0, len(Names))
	for _, name := range Names {
		parts = append(parts, fmt.Sprintf(`SELECT %s, COUNT(DISTINCT term) FROM %s`,
			pq.QuoteLiteral(name), s.tables[name]))
	}
	rows, err := s.db.DB.QueryContext(ctx, strings.Join(parts, " UNION ALL "))
	if err != nil {
		return nil, fmt.Errorf("counting shard terms: %w", err)
	}
	defer rows.Close()
	stats := make(map[string]int64, len(Names))
	for rows.Next() {
		var (
			name string
			n    int64
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scanning shard stats: %w", err)
		}
		stats[name] = n
	}
	return stats, rows.Err()
}
