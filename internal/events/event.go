// Package events defines the tagged-variant event type exchanged between
// ingestion, the indexing workers and the search service, and the buses
// that carry it. Payloads are validated here, before any handler runs.
package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/errors"
)

type Kind string

const (
	KindDocumentIngested Kind = "document.ingested"
	KindDocumentIndexed  Kind = "document.indexed"
	KindReindexRequest   Kind = "reindex.request"
)

// Kinds lists every known event kind.
var Kinds = []Kind{KindDocumentIngested, KindDocumentIndexed, KindReindexRequest}

func (k Kind) Valid() bool {
	switch k {
	case KindDocumentIngested, KindDocumentIndexed, KindReindexRequest:
		return true
	}
	return false
}

// Broadcast reports whether every subscriber receives each event. Other
// kinds are queues with one competing consumer per delivery.
func (k Kind) Broadcast() bool {
	return k == KindReindexRequest
}

// Event carries exactly one payload: DocumentID for document kinds, RunID
// for reindex requests.
type Event struct {
	Kind       Kind
	DocumentID int64
	RunID      string
}

func DocumentIngested(id int64) Event {
	return Event{Kind: KindDocumentIngested, DocumentID: id}
}

func DocumentIndexed(id int64) Event {
	return Event{Kind: KindDocumentIndexed, DocumentID: id}
}

func ReindexRequested(runID string) Event {
	return Event{Kind: KindReindexRequest, RunID: runID}
}

// Key is the partitioning key on the wire.
func (e Event) Key() string {
	if e.Kind == KindReindexRequest {
		return e.RunID
	}
	return strconv.FormatInt(e.DocumentID, 10)
}

func (e Event) Validate() error {
	switch e.Kind {
	case KindDocumentIngested, KindDocumentIndexed:
		if e.DocumentID < 0 {
			return fmt.Errorf("%w: %s with negative documentId %d", apperrors.ErrInvalidPayload, e.Kind, e.DocumentID)
		}
		if e.RunID != "" {
			return fmt.Errorf("%w: %s must not carry runId", apperrors.ErrInvalidPayload, e.Kind)
		}
	case KindReindexRequest:
		if strings.TrimSpace(e.RunID) == "" {
			return fmt.Errorf("%w: %s without runId", apperrors.ErrInvalidPayload, e.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", apperrors.ErrInvalidPayload, e.Kind)
	}
	return nil
}

func (e Event) String() string {
	if e.Kind == KindReindexRequest {
		return fmt.Sprintf("%s{runId=%s}", e.Kind, e.RunID)
	}
	return fmt.Sprintf("%s{documentId=%d}", e.Kind, e.DocumentID)
}

type wireEvent struct {
	Kind       Kind    `json:"kind,omitempty"`
	DocumentID *int64  `json:"documentId,omitempty"`
	RunID      *string `json:"runId,omitempty"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{Kind: e.Kind}
	if e.Kind == KindReindexRequest {
		w.RunID = &e.RunID
	} else {
		w.DocumentID = &e.DocumentID
	}
	return json.Marshal(w)
}

// Decode parses a payload received on the channel for expected. A payload
// without a kind is taken to be of the channel's kind. Any malformed,
// mismatched or incomplete payload yields ErrInvalidPayload.
func Decode(expected Kind, raw []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return Event{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidPayload, err)
	}
	if w.Kind == "" {
		w.Kind = expected
	}
	if w.Kind != expected {
		return Event{}, fmt.Errorf("%w: got %q on %q channel", apperrors.ErrInvalidPayload, w.Kind, expected)
	}

	e := Event{Kind: w.Kind}
	switch w.Kind {
	case KindDocumentIngested, KindDocumentIndexed:
		if w.DocumentID == nil {
			return Event{}, fmt.Errorf("%w: %s without documentId", apperrors.ErrInvalidPayload, w.Kind)
		}
		e.DocumentID = *w.DocumentID
		if w.RunID != nil {
			e.RunID = *w.RunID
		}
	case KindReindexRequest:
		if w.RunID != nil {
			e.RunID = *w.RunID
		}
		if w.DocumentID != nil {
			return Event{}, fmt.Errorf("%w: %s must not carry documentId", apperrors.ErrInvalidPayload, w.Kind)
		}
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

// EncodeJSON is the wire form used by every bus.
func EncodeJSON(e Event) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidPayload, err)
	}
	return raw, nil
}
