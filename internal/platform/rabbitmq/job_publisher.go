package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// JobPublisher publishes JSON jobs to a single durable queue.
type JobPublisher struct {
	conn      *amqp.Connection
	queueName string

	declared declareGuard
}

func NewJobPublisher(conn *amqp.Connection, queueName string) *JobPublisher {
	return &JobPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *JobPublisher) Publish(ctx context.Context, job any) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job payload failed: %w", err)
	}
	return p.PublishRaw(ctx, payload)
}

// PublishRaw publishes an already encoded JSON body.
func (p *JobPublisher) PublishRaw(ctx context.Context, body []byte) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := p.declared.ensure(func() error {
		return DeclareQueue(ch, p.queueName)
	}); err != nil {
		return err
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish job to %s failed: %w", p.queueName, err)
	}
	return nil
}

// declareGuard runs a declaration until it first succeeds. A failed attempt
// is retried on the next publish.
type declareGuard struct {
	mu   sync.Mutex
	done bool
}

func (g *declareGuard) ensure(declare func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return nil
	}
	if err := declare(); err != nil {
		return err
	}
	g.done = true
	return nil
}

// DeclareQueue declares the durable queue shared by publishers and workers.
func DeclareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s failed: %w", name, err)
	}
	return nil
}
