// Package eventstore persists the append-only event history of every
// aggregate. It is the source of truth; the accounts read model is a
// disposable projection rebuilt from this log.
package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arcadehub/users-service/internal/domain/event"
)

// ConflictError reports an optimistic concurrency failure. The caller must
// reload the aggregate and retry the command; the store never merges.
type ConflictError struct {
	AggregateID string
	Expected    int
	Actual      int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict on aggregate %s: expected version %d, actual %d",
		e.AggregateID, e.Expected, e.Actual)
}

// StoredEvent is the persisted envelope around a domain event.
type StoredEvent struct {
	ID            string
	AggregateID   string
	EventType     string
	Data          []byte
	OccurredAt    time.Time
	Version       int
	CorrelationID string
}

// OutboxMessage is a pending publication persisted alongside its event.
type OutboxMessage struct {
	AggregateID   string
	Version       int
	Subject       string
	CorrelationID string
	Payload       []byte
	CreatedAt     time.Time
}

// PgStore is the PostgreSQL event store. The unique index on
// (aggregate_id, version) is the actual concurrency guarantee: two writers
// racing past the version check cannot both insert the same version.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Append stores evt at expectedVersion+1 together with an outbox row in a
// single transaction. A version mismatch, detected either by the pre-check
// or by the unique index on insert, returns *ConflictError.
func (s *PgStore) Append(ctx context.Context, aggregateID string, evt event.Event, expectedVersion int, correlationID string) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", evt.Subject(), err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning append tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = $1
	`, aggregateID).Scan(&current)
	if err != nil {
		return fmt.Errorf("reading current version: %w", err)
	}
	if current != expectedVersion {
		return &ConflictError{AggregateID: aggregateID, Expected: expectedVersion, Actual: current}
	}

	version := expectedVersion + 1
	occurredAt := time.Now().UTC()

	_, err = tx.Exec(ctx, `
		INSERT INTO events (id, aggregate_id, event_type, data, occurred_at, version, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.NewString(), aggregateID, evt.Subject(), data, occurredAt, version, correlationID)
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent writer won the race between our check and insert.
			actual, rerr := s.currentVersion(ctx, aggregateID)
			if rerr != nil {
				actual = expectedVersion + 1
			}
			return &ConflictError{AggregateID: aggregateID, Expected: expectedVersion, Actual: actual}
		}
		return fmt.Errorf("inserting event: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO event_outbox (aggregate_id, version, subject, correlation_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, aggregateID, version, evt.Subject(), correlationID, data, occurredAt)
	if err != nil {
		return fmt.Errorf("inserting outbox row: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing append: %w", err)
	}
	return nil
}

// GetEvents replays the full history of an aggregate, oldest first.
// Unknown aggregates yield an empty slice.
func (s *PgStore) GetEvents(ctx context.Context, aggregateID string) ([]event.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_type, data FROM events
		WHERE aggregate_id = $1
		ORDER BY version ASC
	`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	events := []event.Event{}
	for rows.Next() {
		var eventType string
		var data []byte
		if err := rows.Scan(&eventType, &data); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		evt, err := event.Decode(eventType, data)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// MarkDispatched records that the event at (aggregateID, version) reached
// the bus, so the relay does not republish it.
func (s *PgStore) MarkDispatched(ctx context.Context, aggregateID string, version int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE event_outbox SET dispatched_at = NOW()
		WHERE aggregate_id = $1 AND version = $2 AND dispatched_at IS NULL
	`, aggregateID, version)
	if err != nil {
		return fmt.Errorf("marking outbox row dispatched: %w", err)
	}
	return nil
}

// PendingOutbox returns undispatched rows older than the grace window,
// oldest first. Rows the command handler already published but failed to
// mark come back too; duplicates are safe because the consumer is
// idempotent.
func (s *PgStore) PendingOutbox(ctx context.Context, olderThan time.Duration, limit int) ([]OutboxMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT aggregate_id, version, subject, correlation_id, payload, created_at
		FROM event_outbox
		WHERE dispatched_at IS NULL AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, time.Now().UTC().Add(-olderThan), limit)
	if err != nil {
		return nil, fmt.Errorf("querying outbox: %w", err)
	}
	defer rows.Close()

	var pending []OutboxMessage
	for rows.Next() {
		var m OutboxMessage
		if err := rows.Scan(&m.AggregateID, &m.Version, &m.Subject, &m.CorrelationID, &m.Payload, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning outbox row: %w", err)
		}
		pending = append(pending, m)
	}
	return pending, rows.Err()
}

func (s *PgStore) currentVersion(ctx context.Context, aggregateID string) (int, error) {
	var v int
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = $1
	`, aggregateID).Scan(&v)
	return v, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
