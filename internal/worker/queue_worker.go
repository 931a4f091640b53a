package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/time/rate"

	"aligncall/internal/platform/rabbitmq"
)

// ErrDrop marks a job that can never succeed. It is acknowledged and discarded.
var ErrDrop = errors.New("drop job")

// HandlerFunc processes one job body.
type HandlerFunc func(ctx context.Context, body []byte) error

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// QueueWorker consumes a durable queue and runs handle for every delivery.
// A failed job is requeued once and dropped when it fails again.
type QueueWorker struct {
	conn      *amqp.Connection
	queueName string
	handle    HandlerFunc
	limiter   *rate.Limiter
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueueWorker(conn *amqp.Connection, queueName string, handle HandlerFunc, limiter *rate.Limiter, logger *slog.Logger) *QueueWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueWorker{
		conn:      conn,
		queueName: queueName,
		handle:    handle,
		limiter:   limiter,
		logger:    logger.With("queue", queueName),
	}
}

func (w *QueueWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker prefetch failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.process(workerCtx, d.Body, d.Redelivered, d)
			}
		}
	}()

	w.logger.Info("worker started")
	return nil
}

func (w *QueueWorker) process(ctx context.Context, body []byte, redelivered bool, ack acknowledger) {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			_ = ack.Nack(false, true)
			return
		}
	}

	err := w.handle(ctx, body)
	switch {
	case err == nil:
		_ = ack.Ack(false)
	case errors.Is(err, ErrDrop):
		w.logger.WarnContext(ctx, "dropping job", "error", err)
		_ = ack.Ack(false)
	default:
		w.logger.ErrorContext(ctx, "job failed", "error", err, "redelivered", redelivered)
		_ = ack.Nack(false, !redelivered)
	}
}

func (w *QueueWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
