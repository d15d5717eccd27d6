package notify

import (
	"context"
	"log/slog"
)

// Sink delivers a payload to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, p Payload) error
}

// Notifier fans a payload out to every configured sink. Delivery failures are
// logged, never returned.
type Notifier struct {
	sinks  []Sink
	logger *slog.Logger
}

func NewNotifier(logger *slog.Logger, sinks ...Sink) *Notifier {
	return &Notifier{
		sinks:  sinks,
		logger: logger.With("component", "notifier"),
	}
}

// Dispatch reports whether at least one sink accepted the payload.
func (n *Notifier) Dispatch(ctx context.Context, p Payload) bool {
	if len(n.sinks) == 0 {
		n.logger.Info("no notification sink configured", "title", p.Title, "item_id", p.ItemID)
		return false
	}

	delivered := false
	for _, sink := range n.sinks {
		if err := sink.Send(ctx, p); err != nil {
			n.logger.Error("failed to deliver notification",
				"sink", sink.Name(),
				"item_id", p.ItemID,
				"error", err)
			continue
		}
		delivered = true
	}
	return delivered
}
