package document

import (
	"database/sql/driver"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/errors"
)

// Status is the indexing lifecycle state of a document. UNINDEXED is stored
// as NULL so freshly ingested rows need no status at all.
type Status string

const (
	StatusUnindexed Status = "UNINDEXED"
	StatusIndexing  Status = "INDEXING"
	StatusDone      Status = "DONE"
	StatusError     Status = "ERROR"
)

var legalTransitions = map[Status][]Status{
	StatusUnindexed: {StatusIndexing},
	StatusIndexing:  {StatusDone, StatusError},
	StatusDone:      {StatusUnindexed},
	StatusError:     {StatusUnindexed},
}

// Transition reports whether moving a document from one status to another is
// allowed. Every status write in the stores goes through it.
func Transition(from, to Status) error {
	for _, next := range legalTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", apperrors.ErrIllegalTransition, from, to)
}

// ParseStatus maps a stored value to a Status; the empty string is UNINDEXED.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case "", StatusUnindexed:
		return StatusUnindexed, nil
	case StatusIndexing, StatusDone, StatusError:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown index status %q", s)
	}
}

func (s Status) String() string {
	if s == "" {
		return string(StatusUnindexed)
	}
	return string(s)
}

// Value stores UNINDEXED as NULL.
func (s Status) Value() (driver.Value, error) {
	if s == "" || s == StatusUnindexed {
		return nil, nil
	}
	return string(s), nil
}

func (s *Status) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		raw = ""
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("scanning index status: unsupported type %T", src)
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = s.String()
	}
	return out
}

func containsStatus(statuses []Status, s Status) bool {
	for _, candidate := range statuses {
		if candidate.String() == s.String() {
			return true
		}
	}
	return false
}

func checkTransitions(from []Status, to Status) error {
	if len(from) == 0 {
		return fmt.Errorf("%w: no expected status given", apperrors.ErrInvalidInput)
	}
	for _, f := range from {
		if err := Transition(f, to); err != nil {
			return err
		}
	}
	return nil
}
