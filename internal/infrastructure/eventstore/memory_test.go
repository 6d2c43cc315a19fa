package eventstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arcadehub/users-service/internal/domain/event"
)

func TestAppend_VersionsAreGaplessAndOrdered(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		evt := event.UserAuthenticated{ID: "acc-1", Name: "Ana"}
		if err := store.Append(ctx, "acc-1", evt, i, "corr-1"); err != nil {
			t.Fatalf("append at expected version %d: %v", i, err)
		}
	}

	stored := store.Stored("acc-1")
	if len(stored) != 5 {
		t.Fatalf("expected 5 stored events, got %d", len(stored))
	}
	for i, se := range stored {
		if se.Version != i+1 {
			t.Errorf("position %d: expected version %d, got %d", i, i+1, se.Version)
		}
	}
}

func TestAppend_StaleExpectedVersionConflicts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	evt := event.AccountCreated{ID: "acc-1", Name: "Ana", Email: "ana@x.com"}
	if err := store.Append(ctx, "acc-1", evt, 0, "c1"); err != nil {
		t.Fatalf("first append: %v", err)
	}

	err := store.Append(ctx, "acc-1", evt, 0, "c2")
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Expected != 0 || conflict.Actual != 1 {
		t.Errorf("conflict should name expected=0 actual=1, got expected=%d actual=%d",
			conflict.Expected, conflict.Actual)
	}
}

func TestAppend_ConcurrentSameExpectedVersion_OneWinner(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			evt := event.UserAuthenticated{ID: "acc-1", Device: "d"}
			errs[i] = store.Append(ctx, "acc-1", evt, 0, "corr")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("loser got unexpected error kind: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning append, got %d", wins)
	}
	if got := len(store.Stored("acc-1")); got != 1 {
		t.Fatalf("expected a single stored event, got %d", got)
	}
}

func TestGetEvents_UnknownAggregateIsEmpty(t *testing.T) {
	store := NewMemoryStore()
	events, err := store.GetEvents(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected empty history, got %d events", len(events))
	}
}

func TestGetEvents_RoundTripsVariants(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	created := event.AccountCreated{ID: "acc-1", Name: "Ana", Email: "ana@x.com", Profile: "Common", Active: true}
	deleted := event.AccountDeleted{ID: "acc-1", Email: "ana@x.com"}
	if err := store.Append(ctx, "acc-1", created, 0, "c1"); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, "acc-1", deleted, 1, "c2"); err != nil {
		t.Fatal(err)
	}

	events, err := store.GetEvents(ctx, "acc-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if _, ok := events[0].(event.AccountCreated); !ok {
		t.Errorf("first event should be AccountCreated, got %T", events[0])
	}
	if _, ok := events[1].(event.AccountDeleted); !ok {
		t.Errorf("second event should be AccountDeleted, got %T", events[1])
	}
}

func TestOutbox_GraceWindowHidesFreshRows(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	evt := event.AccountCreated{ID: "acc-1", Email: "ana@x.com"}
	if err := store.Append(ctx, "acc-1", evt, 0, "c1"); err != nil {
		t.Fatal(err)
	}

	// A row appended a moment ago is still inside the grace window.
	pending, err := store.PendingOutbox(ctx, time.Hour, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("fresh row should be hidden by the grace window, got %d", len(pending))
	}

	pending, err = store.PendingOutbox(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected the row once the window has passed, got %d", len(pending))
	}
	if pending[0].CreatedAt.IsZero() {
		t.Fatal("outbox rows must record their creation time")
	}
}

func TestOutbox_MarkDispatchedRemovesPending(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	evt := event.AccountCreated{ID: "acc-1", Email: "ana@x.com"}
	if err := store.Append(ctx, "acc-1", evt, 0, "c1"); err != nil {
		t.Fatal(err)
	}

	pending, err := store.PendingOutbox(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Subject != event.SubjectUserCreated {
		t.Fatalf("expected one pending UserCreated row, got %+v", pending)
	}

	if err := store.MarkDispatched(ctx, "acc-1", 1); err != nil {
		t.Fatal(err)
	}
	pending, err = store.PendingOutbox(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending rows after dispatch, got %d", len(pending))
	}
}
