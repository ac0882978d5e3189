package events

import (
	"context"
	"errors"
	"log/slog"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/metrics"
)

// Handler processes one validated event. A non-nil error asks the bus to
// deliver the event again.
type Handler func(ctx context.Context, e Event) error

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Bus delivers queue kinds to one competing subscriber and broadcast kinds
// to every subscriber. Subscribe must be called before Run.
type Bus interface {
	Publisher
	Subscribe(kind Kind, h Handler)
	Run(ctx context.Context) error
	Close() error
}

// dispatch decodes raw and hands the event to h. Invalid payloads are
// dropped: they are logged, counted and acknowledged, never redelivered.
func dispatch(ctx context.Context, kind Kind, raw []byte, h Handler, m *metrics.Metrics, logger *slog.Logger) error {
	e, err := Decode(kind, raw)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidPayload) {
			m.EventsDropped.WithLabelValues(string(kind)).Inc()
			logger.Warn("dropping invalid event", "kind", kind, "error", err, "payload_size", len(raw))
			return nil
		}
		return err
	}
	return h(ctx, e)
}
