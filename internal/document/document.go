// Package document owns the document model, its indexing state machine and
// the store contract shared by the indexing and reindex coordinators.
//
// Every status mutation is a single conditional update evaluated by the
// store; callers never read a status and then write it back.
package document

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/errors"
)

type Document struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Author          string     `json:"author"`
	Language        string     `json:"language"`
	ReleaseDate     string     `json:"releaseDate"`
	Content         string     `json:"content,omitempty"`
	Status          Status     `json:"indexStatus"`
	IndexStartedAt  *time.Time `json:"indexStartedAt,omitempty"`
	IndexFinishedAt *time.Time `json:"indexFinishedAt,omitempty"`
	IndexError      string     `json:"indexError,omitempty"`
}

// Metadata is the descriptive part of a document that ingestion may rewrite
// without touching indexing state.
type Metadata struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Language    string `json:"language"`
	ReleaseDate string `json:"releaseDate"`
}

// Fields are written alongside a status change. Zero values clear the
// corresponding column.
type Fields struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string
}

// Filter narrows a set of ids by metadata. Empty fields are ignored.
type Filter struct {
	Author   string `json:"author,omitempty"`
	Language string `json:"language,omitempty"`
	Year     string `json:"year,omitempty"`
}

var yearPattern = regexp.MustCompile(`^[0-9]{4}$`)

func (f Filter) IsEmpty() bool {
	return f.Author == "" && f.Language == "" && f.Year == ""
}

// Normalize trims every field.
func (f Filter) Normalize() Filter {
	return Filter{
		Author:   strings.TrimSpace(f.Author),
		Language: strings.TrimSpace(f.Language),
		Year:     strings.TrimSpace(f.Year),
	}
}

func (f Filter) Validate() error {
	if f.Year != "" && !yearPattern.MatchString(f.Year) {
		return fmt.Errorf("%w: year must be four digits, got %q", apperrors.ErrInvalidInput, f.Year)
	}
	return nil
}

// Matches applies the filter to a single document in memory.
func (f Filter) Matches(doc *Document) bool {
	if f.Author != "" && !containsFold(doc.Author, f.Author) {
		return false
	}
	if f.Language != "" && !containsFold(doc.Language, f.Language) {
		return false
	}
	if f.Year != "" && !MatchesYear(doc.ReleaseDate, f.Year) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// yearTokens matches four digits bounded by non-word characters, so
// "c1999" and "19990" hold no year but "1999-05" does.
var yearTokens = regexp.MustCompile(`\b[0-9]{4}\b`)

// ExtractYear returns the first standalone four-digit run in a free-text
// release date, or "unknown".
func ExtractYear(releaseDate string) string {
	if year := yearTokens.FindString(releaseDate); year != "" {
		return year
	}
	return "unknown"
}

// MatchesYear reports whether year occurs as a standalone four-digit run.
func MatchesYear(releaseDate, year string) bool {
	for _, token := range yearTokens.FindAllString(releaseDate, -1) {
		if token == year {
			return true
		}
	}
	return false
}

// Store is the document store consumed by the coordinators and the query
// engine.
type Store interface {
	FindByID(ctx context.Context, id int64) (*Document, error)
	// FindByIDs returns the documents that exist, ordered by id.
	FindByIDs(ctx context.Context, ids []int64) ([]*Document, error)
	// Save inserts the document or rewrites its metadata and content. Indexing
	// state of an existing row is left alone. created is true for new rows.
	Save(ctx context.Context, doc *Document) (created bool, err error)
	UpdateMetadata(ctx context.Context, id int64, md Metadata) error
	// ConditionalUpdateStatus moves id to next iff its current status is one of
	// expected, and returns the pre-transition snapshot. It returns nil, nil
	// when the document is missing or its status did not match.
	ConditionalUpdateStatus(ctx context.Context, id int64, expected []Status, next Status, f Fields) (*Document, error)
	// ResetAllStatus moves every document in from to `to` and clears indexing
	// timestamps and errors.
	ResetAllStatus(ctx context.Context, from []Status, to Status) (int64, error)
	// ClaimBatch moves up to limit documents in statusIn to next in one atomic
	// step, lowest ids first, and returns them post-transition in id order.
	ClaimBatch(ctx context.Context, statusIn []Status, next Status, limit int, f Fields) ([]*Document, error)
	// FilterByMetadata returns the subset of ids matching f, in id order.
	FilterByMetadata(ctx context.Context, ids []int64, f Filter) ([]int64, error)
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}
