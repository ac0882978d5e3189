package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/postgres"
	"github.com/lib/pq"
)

// Schema creates the documents table. index_status is NULL for UNINDEXED.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	id                BIGINT PRIMARY KEY,
	title             TEXT NOT NULL DEFAULT '',
	author            TEXT NOT NULL DEFAULT '',
	language          TEXT NOT NULL DEFAULT '',
	release_date      TEXT NOT NULL DEFAULT '',
	content           TEXT,
	index_status      TEXT CHECK (index_status IN ('INDEXING', 'DONE', 'ERROR')),
	index_started_at  TIMESTAMPTZ,
	index_finished_at TIMESTAMPTZ,
	index_error       TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_documents_index_status ON documents (index_status, id);
`

const documentColumns = `id, title, author, language, release_date, COALESCE(content, ''),
	index_status, index_started_at, index_finished_at, COALESCE(index_error, '')`

type PostgresStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: slog.Default().With("component", "document-store"),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		doc      Document
		started  sql.NullTime
		finished sql.NullTime
	)
	if err := row.Scan(&doc.ID, &doc.Title, &doc.Author, &doc.Language, &doc.ReleaseDate,
		&doc.Content, &doc.Status, &started, &finished, &doc.IndexError); err != nil {
		return nil, err
	}
	if started.Valid {
		doc.IndexStartedAt = timePtr(started.Time)
	}
	if finished.Valid {
		doc.IndexFinishedAt = timePtr(finished.Time)
	}
	return &doc, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*Document, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %d: %w", id, apperrors.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying document %d: %w", id, err)
	}
	return doc, nil
}

func (s *PostgresStore) FindByIDs(ctx context.Context, ids []int64) ([]*Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	return collectDocuments(rows)
}

func collectDocuments(rows *sql.Rows) ([]*Document, error) {
	defer rows.Close()
	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

func (s *PostgresStore) Save(ctx context.Context, doc *Document) (bool, error) {
	var created bool
	err := s.db.DB.QueryRowContext(ctx,
		`INSERT INTO documents (id, title, author, language, release_date, content)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			author = EXCLUDED.author,
			language = EXCLUDED.language,
			release_date = EXCLUDED.release_date,
			content = EXCLUDED.content,
			updated_at = NOW()
		RETURNING (xmax = 0)`,
		doc.ID, doc.Title, doc.Author, doc.Language, doc.ReleaseDate, doc.Content).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("saving document %d: %w", doc.ID, err)
	}
	return created, nil
}

func (s *PostgresStore) UpdateMetadata(ctx context.Context, id int64, md Metadata) error {
	res, err := s.db.DB.ExecContext(ctx,
		`UPDATE documents SET title = $2, author = $3, language = $4, release_date = $5, updated_at = NOW()
		WHERE id = $1`, id, md.Title, md.Author, md.Language, md.ReleaseDate)
	if err != nil {
		return fmt.Errorf("updating metadata of %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating metadata of %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("document %d: %w", id, apperrors.ErrDocumentNotFound)
	}
	return nil
}

// ConditionalUpdateStatus locks the row in a sub-select so the old values can
// be returned; concurrent callers re-evaluate the status after the first
// commits and fall through with no row.
func (s *PostgresStore) ConditionalUpdateStatus(ctx context.Context, id int64, expected []Status, next Status, f Fields) (*Document, error) {
	if err := checkTransitions(expected, next); err != nil {
		return nil, err
	}
	row := s.db.DB.QueryRowContext(ctx,
		`UPDATE documents d SET
			index_status = $3,
			index_started_at = COALESCE($4, d.index_started_at),
			index_finished_at = $5,
			index_error = NULLIF($6, ''),
			updated_at = NOW()
		FROM (
			SELECT id, index_status, index_started_at, index_finished_at, index_error
			FROM documents WHERE id = $1 FOR UPDATE
		) old
		WHERE d.id = old.id AND COALESCE(old.index_status, 'UNINDEXED') = ANY($2)
		RETURNING d.id, d.title, d.author, d.language, d.release_date, COALESCE(d.content, ''),
			old.index_status, old.index_started_at, old.index_finished_at, COALESCE(old.index_error, '')`,
		id, pq.Array(statusStrings(expected)), next, timePtr(f.StartedAt), timePtr(f.FinishedAt), f.Error)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conditional status update of %d: %w", id, err)
	}
	return doc, nil
}

func (s *PostgresStore) ResetAllStatus(ctx context.Context, from []Status, to Status) (int64, error) {
	if err := checkTransitions(from, to); err != nil {
		return 0, err
	}
	res, err := s.db.DB.ExecContext(ctx,
		`UPDATE documents SET index_status = $2, index_started_at = NULL, index_finished_at = NULL,
			index_error = NULL, updated_at = NOW()
		WHERE COALESCE(index_status, 'UNINDEXED') = ANY($1)`,
		pq.Array(statusStrings(from)), to)
	if err != nil {
		return 0, fmt.Errorf("resetting document status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("resetting document status: %w", err)
	}
	s.logger.Info("document status reset", "from", statusStrings(from), "to", to.String(), "documents", n)
	return n, nil
}

// ClaimBatch skips rows locked by a concurrent claimer instead of waiting, so
// parallel rebuilders each take a disjoint batch.
func (s *PostgresStore) ClaimBatch(ctx context.Context, statusIn []Status, next Status, limit int, f Fields) ([]*Document, error) {
	if err := checkTransitions(statusIn, next); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: batch limit must be positive", apperrors.ErrInvalidInput)
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`UPDATE documents SET
			index_status = $2,
			index_started_at = $4,
			index_finished_at = NULL,
			index_error = NULL,
			updated_at = NOW()
		WHERE id IN (
			SELECT id FROM documents
			WHERE COALESCE(index_status, 'UNINDEXED') = ANY($1)
			ORDER BY id
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+documentColumns,
		pq.Array(statusStrings(statusIn)), next, limit, timePtr(f.StartedAt))
	if err != nil {
		return nil, fmt.Errorf("claiming batch: %w", err)
	}
	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *PostgresStore) FilterByMetadata(ctx context.Context, ids []int64, f Filter) ([]int64, error) {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := strings.Builder{}
	query.WriteString(`SELECT id FROM documents WHERE id = ANY($1)`)
	args := []any{pq.Array(ids)}
	if f.Author != "" {
		args = append(args, escapeLike(f.Author))
		fmt.Fprintf(&query, ` AND author ILIKE '%%' || $%d || '%%'`, len(args))
	}
	if f.Language != "" {
		args = append(args, escapeLike(f.Language))
		fmt.Fprintf(&query, ` AND language ILIKE '%%' || $%d || '%%'`, len(args))
	}
	if f.Year != "" {
		args = append(args, f.Year)
		fmt.Fprintf(&query, ` AND release_date ~ ('\y' || $%d || '\y')`, len(args))
	}
	query.WriteString(` ORDER BY id`)

	rows, err := s.db.DB.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("filtering documents: %w", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating filtered ids: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT index_status, COUNT(*) FROM documents GROUP BY index_status`)
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	defer rows.Close()
	counts := make(map[Status]int64)
	for rows.Next() {
		var (
			status Status
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		counts[status] += n
	}
	return counts, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
