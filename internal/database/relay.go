package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RelaySource identifies this service on relayed stream entries
const RelaySource = "sorare-alert-bot"

var errInvalidPayload = errors.New("payload is not valid JSON")

// RedisClient is the stream subset of *redis.Client the relay needs.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// EventStore is the outbox as seen by the relay.
type EventStore interface {
	ClaimDue(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error
	Backlog(ctx context.Context) (Backlog, error)
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// StreamMaxLen caps each target stream with approximate trimming. Defaults
	// to 10000; negative disables trimming.
	StreamMaxLen int64
}

// Relay moves alert events from the outbox to their Redis streams.
type Relay struct {
	store     EventStore
	redis     RedisClient
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	maxLen    int64
}

func NewRelay(db *DB, redisClient RedisClient, logger *slog.Logger, config RelayConfig) *Relay {
	return newRelay(NewOutboxRepository(db), redisClient, logger, config)
}

func newRelay(store EventStore, redisClient RedisClient, logger *slog.Logger, config RelayConfig) *Relay {
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	switch {
	case config.StreamMaxLen == 0:
		config.StreamMaxLen = 10000
	case config.StreamMaxLen < 0:
		config.StreamMaxLen = 0
	}

	return &Relay{
		store:     store,
		redis:     redisClient,
		logger:    logger.With("component", "relay"),
		interval:  config.PollInterval,
		batchSize: config.BatchSize,
		maxLen:    config.StreamMaxLen,
	}
}

// Start drains the outbox on every tick until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("starting relay", "interval", r.interval, "batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.drain(ctx)

		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// drain relays batches until a short batch signals the backlog is empty.
func (r *Relay) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := r.relayBatch(ctx)
		if err != nil {
			r.logger.Error("failed to relay batch", "error", err)
			return
		}
		if n < r.batchSize {
			return
		}
	}
}

// relayBatch publishes one claimed batch and returns how many events it claimed.
// A failed event is marked for retry and does not stop the batch.
func (r *Relay) relayBatch(ctx context.Context) (int, error) {
	events, err := r.store.ClaimDue(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	var published, failed int
	for _, e := range events {
		if err := r.relay(ctx, e); err != nil {
			failed++
			r.logger.Warn("alert event not relayed",
				"event_id", e.ID, "aggregate_id", e.AggregateID, "attempt", e.Attempts+1, "error", err)
			continue
		}
		published++
	}

	if len(events) > 0 {
		r.logger.Debug("relayed batch", "published", published, "failed", failed)
	}
	return len(events), nil
}

func (r *Relay) relay(ctx context.Context, e *OutboxEvent) error {
	if err := r.publish(ctx, e); err != nil {
		if markErr := r.store.MarkFailed(ctx, e.ID, err); markErr != nil {
			return errors.Join(err, markErr)
		}
		return err
	}
	return r.store.MarkPublished(ctx, e.ID)
}

// publish writes one flat stream entry. The payload is forwarded verbatim.
func (r *Relay) publish(ctx context.Context, e *OutboxEvent) error {
	if !json.Valid(e.Payload) {
		return errInvalidPayload
	}

	args := &redis.XAddArgs{
		Stream: e.TargetStream,
		MaxLen: r.maxLen,
		Approx: r.maxLen > 0,
		Values: map[string]interface{}{
			"event_id":       e.ID.String(),
			"event_type":     e.EventType,
			"aggregate_type": e.AggregateType,
			"aggregate_id":   e.AggregateID,
			"created_at":     e.CreatedAt.UTC().Format(time.RFC3339),
			"attempt":        strconv.Itoa(e.Attempts + 1),
			"source":         RelaySource,
			"payload":        string(e.Payload),
		},
	}

	if err := r.redis.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// Backlog reports the outbox figures shown by the health check.
func (r *Relay) Backlog(ctx context.Context) (Backlog, error) {
	return r.store.Backlog(ctx)
}
