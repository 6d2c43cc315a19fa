// Package consumer rebuilds the accounts read model from the users event
// queue. Delivery is at-least-once and unordered across aggregates, so
// every handler is idempotent: redelivered events are no-op successes.
package consumer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/arcadehub/users-service/internal/domain/event"
	"github.com/arcadehub/users-service/internal/domain/repository"
)

// State is the worker lifecycle: Stopped -> Starting -> Processing ->
// Stopping -> Stopped.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateProcessing
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateProcessing:
		return "processing"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}

const (
	defaultConcurrency = 4
	defaultPrefetch    = 20
)

// EmailQueue enqueues follow-up email jobs. Optional; nil disables it.
type EmailQueue interface {
	PublishJSON(ctx context.Context, body any) error
}

// Indexer mirrors projected accounts into a search index. Optional.
type Indexer interface {
	Index(ctx context.Context, evt event.AccountCreated) error
	Remove(ctx context.Context, id string) error
}

// Worker subscribes to the users queue and projects events into the read
// model. Messages are acked only after the handler succeeds; failures are
// nacked for transport-level redelivery.
type Worker struct {
	Repo   repository.AccountRepository
	Logger *logrus.Logger
	Mail   EmailQueue
	Search Indexer

	url         string
	queue       string
	concurrency int
	prefetch    int

	conn  *amqp.Connection
	ch    *amqp.Channel
	state atomic.Int32
	wg    sync.WaitGroup
}

func NewWorker(url, queue string, repo repository.AccountRepository, logger *logrus.Logger) *Worker {
	return &Worker{
		Repo:        repo,
		Logger:      logger,
		url:         url,
		queue:       queue,
		concurrency: defaultConcurrency,
		prefetch:    defaultPrefetch,
	}
}

func (w *Worker) State() State { return State(w.state.Load()) }

// Start connects, declares the durable queue and launches the consume
// loop. Auto-ack is disabled; prefetch bounds in-flight messages.
func (w *Worker) Start(ctx context.Context) error {
	if !w.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return fmt.Errorf("worker is %s, cannot start", w.State())
	}

	conn, err := amqp.Dial(w.url)
	if err != nil {
		w.state.Store(int32(StateStopped))
		return fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		w.state.Store(int32(StateStopped))
		return fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.Qos(w.prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		w.state.Store(int32(StateStopped))
		return fmt.Errorf("qos: %w", err)
	}
	if _, err := ch.QueueDeclare(w.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		w.state.Store(int32(StateStopped))
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(w.queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		w.state.Store(int32(StateStopped))
		return fmt.Errorf("consume: %w", err)
	}

	w.conn = conn
	w.ch = ch

	// Transport-level failures are logged, never fatal to the loop.
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if amqpErr := <-closed; amqpErr != nil {
			w.Logger.WithError(amqpErr).Error("amqp channel closed")
		}
	}()

	w.state.Store(int32(StateProcessing))
	w.Logger.WithFields(logrus.Fields{
		"queue":       w.queue,
		"concurrency": w.concurrency,
		"prefetch":    w.prefetch,
	}).Info("projection worker started")

	w.wg.Add(1)
	go w.loop(ctx, msgs)
	return nil
}

func (w *Worker) loop(ctx context.Context, msgs <-chan amqp.Delivery) {
	defer w.wg.Done()
	sem := make(chan struct{}, w.concurrency)
	for msg := range msgs {
		select {
		case <-ctx.Done():
			_ = msg.Nack(false, true)
			continue
		case sem <- struct{}{}:
		}
		w.wg.Add(1)
		go func(d amqp.Delivery) {
			defer w.wg.Done()
			defer func() { <-sem }()
			w.process(ctx, d)
		}(msg)
	}
}

func (w *Worker) process(ctx context.Context, d amqp.Delivery) {
	err := w.Handle(ctx, d.Type, d.Body, d.CorrelationId)
	if err != nil {
		w.Logger.WithError(err).WithFields(logrus.Fields{
			"subject":        d.Type,
			"correlation_id": d.CorrelationId,
		}).Error("handler failed, message will be redelivered")
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

// Handle dispatches one message by its subject tag. Unknown subjects are
// logged and dropped rather than retried forever. A nil return means the
// message may be acknowledged.
func (w *Worker) Handle(ctx context.Context, subject string, body []byte, correlationID string) error {
	w.Logger.WithFields(logrus.Fields{
		"subject":        subject,
		"correlation_id": correlationID,
	}).Info("message received")

	switch subject {
	case event.SubjectUserCreated:
		return w.handleUserCreated(ctx, body)
	case event.SubjectUserDeleted:
		return w.handleUserDeleted(ctx, body)
	case event.SubjectUserLogin:
		return w.handleUserLogin(body)
	default:
		w.Logger.WithField("subject", subject).Warn("unknown event subject, dropping")
		return nil
	}
}

// Stop drains in-flight handlers and tears the connection down.
func (w *Worker) Stop(ctx context.Context) error {
	if !w.state.CompareAndSwap(int32(StateProcessing), int32(StateStopping)) {
		return fmt.Errorf("worker is %s, cannot stop", w.State())
	}
	if w.ch != nil {
		_ = w.ch.Close()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
	}

	if w.conn != nil {
		_ = w.conn.Close()
	}
	w.state.Store(int32(StateStopped))
	w.Logger.Info("projection worker stopped")
	return nil
}
