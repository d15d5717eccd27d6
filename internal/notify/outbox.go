package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/maltedev/sorare-alert-bot/internal/database"
)

const (
	AggregateWatchEntity = "watch_entity"

	EventListingAlert = "LISTING_ALERT"
	EventNewListing   = "NEW_LISTING"
)

// EventWriter persists outbox events.
type EventWriter interface {
	Insert(ctx context.Context, event *database.OutboxEvent) error
}

// OutboxSink records payloads in the transactional outbox. The relay later
// publishes them to a Redis stream for downstream consumers.
type OutboxSink struct {
	writer EventWriter
	stream string
}

func NewOutboxSink(writer EventWriter, stream string) *OutboxSink {
	if stream == "" {
		stream = database.DefaultAlertStream
	}
	return &OutboxSink{writer: writer, stream: stream}
}

func (o *OutboxSink) Name() string {
	return "outbox"
}

func (o *OutboxSink) Send(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	eventType := EventNewListing
	if p.Alert {
		eventType = EventListingAlert
	}

	event := &database.OutboxEvent{
		AggregateType: AggregateWatchEntity,
		AggregateID:   fmt.Sprintf("%s:%s_%s", p.Kind, p.Slug, p.Rarity),
		EventType:     eventType,
		Payload:       body,
		TargetStream:  o.stream,
	}
	if err := o.writer.Insert(ctx, event); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}
