package bus

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/arcadehub/users-service/internal/infrastructure/eventstore"
)

// OutboxSource is the slice of the event store the relay needs.
type OutboxSource interface {
	PendingOutbox(ctx context.Context, olderThan time.Duration, limit int) ([]eventstore.OutboxMessage, error)
	MarkDispatched(ctx context.Context, aggregateID string, version int) error
}

// Relay republishes outbox rows whose direct publish never completed,
// closing the dual-write gap between the event store and the bus. Rows are
// retried until a send succeeds; the consumer's idempotence absorbs any
// duplicate this produces.
type Relay struct {
	Store    OutboxSource
	Pub      *Publisher
	Logger   *logrus.Logger
	Interval time.Duration
	Grace    time.Duration
	Batch    int
}

func NewRelay(store OutboxSource, pub *Publisher, logger *logrus.Logger) *Relay {
	return &Relay{
		Store:    store,
		Pub:      pub,
		Logger:   logger,
		Interval: 10 * time.Second,
		Grace:    30 * time.Second,
		Batch:    100,
	}
}

// Run loops until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Relay) sweep(ctx context.Context) {
	pending, err := r.Store.PendingOutbox(ctx, r.Grace, r.Batch)
	if err != nil {
		r.Logger.WithError(err).Warn("outbox scan failed")
		return
	}
	for _, m := range pending {
		if err := r.Pub.publishRaw(ctx, m.Payload, m.Subject, m.CorrelationID); err != nil {
			r.Logger.WithError(err).WithFields(logrus.Fields{
				"aggregate_id": m.AggregateID,
				"version":      m.Version,
			}).Warn("outbox republish failed")
			continue
		}
		if err := r.Store.MarkDispatched(ctx, m.AggregateID, m.Version); err != nil {
			r.Logger.WithError(err).WithField("aggregate_id", m.AggregateID).Warn("outbox mark failed")
		}
	}
	if len(pending) > 0 {
		r.Logger.WithField("count", len(pending)).Info("outbox rows relayed")
	}
}
