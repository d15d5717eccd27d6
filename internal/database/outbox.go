package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	OutboxStatusPending    = "pending"
	OutboxStatusPublished  = "published"
	OutboxStatusFailed     = "failed"
	OutboxStatusDeadLetter = "dead_letter"

	// MaxAttempts failed publishes move an event to the dead letter state.
	MaxAttempts = 5

	// DefaultAlertStream receives alert events when none is set on the event
	DefaultAlertStream = "stream:sorare_alerts"

	// claimLease hides claimed events from other relays until they are settled.
	claimLease = time.Minute
)

var ErrEventNotFound = errors.New("outbox event not found")

// OutboxEvent is one notification waiting to be relayed to a Redis stream.
type OutboxEvent struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       json.RawMessage
	TargetStream  string
	Status        string
	Attempts      int
	LastError     *string
	CreatedAt     time.Time
	PublishedAt   *time.Time
	NextAttemptAt time.Time
}

// Backlog counts events still to be delivered and events given up on.
type Backlog struct {
	Pending    int64 `json:"pending"`
	DeadLetter int64 `json:"dead_letter"`
}

type OutboxRepository struct {
	db *DB
}

func NewOutboxRepository(db *DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Insert stores a new event, filling ID, status, stream and timestamps.
func (r *OutboxRepository) Insert(ctx context.Context, event *OutboxEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.TargetStream == "" {
		event.TargetStream = DefaultAlertStream
	}
	event.Status = OutboxStatusPending
	event.CreatedAt = time.Now().UTC()
	event.NextAttemptAt = event.CreatedAt

	_, err := r.db.Exec(ctx, `
		INSERT INTO outbox_event (
			id, aggregate_type, aggregate_id, event_type, payload,
			target_stream, status, attempts, created_at, next_attempt_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $8)`,
		event.ID, event.AggregateType, event.AggregateID, event.EventType, event.Payload,
		event.TargetStream, event.Status, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// ClaimDue leases up to limit due events, oldest first. Rows locked by a
// concurrent relay are skipped.
func (r *OutboxRepository) ClaimDue(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.pool.Query(ctx, `
		UPDATE outbox_event SET next_attempt_at = now() + make_interval(secs => $4)
		WHERE id IN (
			SELECT id FROM outbox_event
			WHERE status IN ($1, $2) AND next_attempt_at <= now()
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, aggregate_type, aggregate_id, event_type, payload, target_stream,
			status, attempts, last_error, created_at, published_at, next_attempt_at`,
		OutboxStatusPending, OutboxStatusFailed, limit, claimLease.Seconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*OutboxEvent, error) {
		e := &OutboxEvent{}
		err := row.Scan(
			&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.TargetStream,
			&e.Status, &e.Attempts, &e.LastError, &e.CreatedAt, &e.PublishedAt, &e.NextAttemptAt,
		)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan outbox events: %w", err)
	}

	// UPDATE ... RETURNING does not keep the subquery order.
	slices.SortFunc(events, func(a, b *OutboxEvent) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return events, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE outbox_event SET status = $1, published_at = now() WHERE id = $2`,
		OutboxStatusPublished, id)
	if err != nil {
		return fmt.Errorf("failed to mark event published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	return nil
}

// MarkFailed records a failed publish and schedules the next attempt, or
// dead-letters the event after MaxAttempts.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	return r.db.Transaction(ctx, func(tx pgx.Tx) error {
		var attempts int
		err := tx.QueryRow(ctx, `SELECT attempts FROM outbox_event WHERE id = $1 FOR UPDATE`, id).Scan(&attempts)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrEventNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to lock event: %w", err)
		}

		attempts++
		status := OutboxStatusFailed
		if attempts >= MaxAttempts {
			status = OutboxStatusDeadLetter
		}

		_, err = tx.Exec(ctx, `
			UPDATE outbox_event
			SET status = $1, attempts = $2, last_error = $3, next_attempt_at = $4
			WHERE id = $5`,
			status, attempts, cause.Error(), time.Now().Add(retryDelay(attempts)), id)
		if err != nil {
			return fmt.Errorf("failed to mark event failed: %w", err)
		}
		return nil
	})
}

func (r *OutboxRepository) Backlog(ctx context.Context) (Backlog, error) {
	var b Backlog
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status IN ($1, $2)),
			COUNT(*) FILTER (WHERE status = $3)
		FROM outbox_event`,
		OutboxStatusPending, OutboxStatusFailed, OutboxStatusDeadLetter,
	).Scan(&b.Pending, &b.DeadLetter)
	if err != nil {
		return Backlog{}, fmt.Errorf("failed to count outbox backlog: %w", err)
	}
	return b, nil
}

// retryDelay doubles per attempt and is capped at five minutes.
func retryDelay(attempts int) time.Duration {
	if attempts >= 9 {
		return 5 * time.Minute
	}
	return min(time.Duration(1<<attempts)*time.Second, 5*time.Minute)
}
