package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arcadehub/users-service/internal/domain/event"
)

// MemoryStore is an in-memory event store with the same contract as
// PgStore. It backs tests and local runs without Postgres; the mutex plays
// the role of the database's unique index for appends within one process.
type MemoryStore struct {
	mu      sync.Mutex
	streams map[string][]StoredEvent
	outbox  []OutboxMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{streams: make(map[string][]StoredEvent)}
}

func (s *MemoryStore) Append(ctx context.Context, aggregateID string, evt event.Event, expectedVersion int, correlationID string) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", evt.Subject(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := len(s.streams[aggregateID])
	if current != expectedVersion {
		return &ConflictError{AggregateID: aggregateID, Expected: expectedVersion, Actual: current}
	}

	stored := StoredEvent{
		ID:            uuid.NewString(),
		AggregateID:   aggregateID,
		EventType:     evt.Subject(),
		Data:          data,
		OccurredAt:    time.Now().UTC(),
		Version:       expectedVersion + 1,
		CorrelationID: correlationID,
	}
	s.streams[aggregateID] = append(s.streams[aggregateID], stored)
	s.outbox = append(s.outbox, OutboxMessage{
		AggregateID:   aggregateID,
		Version:       stored.Version,
		Subject:       stored.EventType,
		CorrelationID: correlationID,
		Payload:       data,
		CreatedAt:     stored.OccurredAt,
	})
	return nil
}

func (s *MemoryStore) GetEvents(ctx context.Context, aggregateID string) ([]event.Event, error) {
	s.mu.Lock()
	stored := append([]StoredEvent(nil), s.streams[aggregateID]...)
	s.mu.Unlock()

	events := []event.Event{}
	for _, se := range stored {
		evt, err := event.Decode(se.EventType, se.Data)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, nil
}

func (s *MemoryStore) MarkDispatched(ctx context.Context, aggregateID string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].AggregateID == aggregateID && s.outbox[i].Version == version {
			s.outbox = append(s.outbox[:i], s.outbox[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) PendingOutbox(ctx context.Context, olderThan time.Duration, limit int) ([]OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	pending := make([]OutboxMessage, 0, limit)
	for _, m := range s.outbox {
		if len(pending) == limit {
			break
		}
		if m.CreatedAt.Before(cutoff) {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Stored exposes the raw envelopes of one aggregate, for tests.
func (s *MemoryStore) Stored(aggregateID string) []StoredEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StoredEvent(nil), s.streams[aggregateID]...)
}
