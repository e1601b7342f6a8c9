package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitConfig struct {
	URL      string
	Prefetch int
}

// DeliveryHandler processes one message body. A returned error rejects the
// message; it is requeued once when the retry predicate accepts the error.
type DeliveryHandler func(ctx context.Context, body []byte) error

// RabbitClient consumes durable queues with manual acks and reconnects with
// exponential backoff when the broker goes away.
type RabbitClient struct {
	cfg RabbitConfig

	mu       sync.Mutex
	handlers map[string]DeliveryHandler
	retry    func(error) bool
}

func NewRabbitClient(cfg RabbitConfig) *RabbitClient {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 50
	}
	return &RabbitClient{cfg: cfg, handlers: make(map[string]DeliveryHandler)}
}

// Handle registers the handler for a queue. Call before Run.
func (rc *RabbitClient) Handle(queue string, h DeliveryHandler) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.handlers[queue] = h
}

// RetryWhen sets the predicate for errors worth one redelivery.
func (rc *RabbitClient) RetryWhen(fn func(error) bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.retry = fn
}

// Run consumes until ctx is cancelled.
func (rc *RabbitClient) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := amqp.Dial(rc.cfg.URL)
		if err != nil {
			slog.Warn("RabbitMQ dial failed", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = rc.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		slog.Warn("RabbitMQ consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func (rc *RabbitClient) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(rc.cfg.Prefetch, 0, false); err != nil {
		slog.Warn("RabbitMQ set QoS failed", "error", err)
	}

	rc.mu.Lock()
	handlers := make(map[string]DeliveryHandler, len(rc.handlers))
	for q, h := range rc.handlers {
		handlers[q] = h
	}
	retry := rc.retry
	rc.mu.Unlock()

	type delivery struct {
		queue string
		msg   amqp.Delivery
	}
	streams := make(map[string]<-chan amqp.Delivery, len(handlers))
	for queue := range handlers {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", queue, err)
		}
		msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", queue, err)
		}
		streams[queue] = msgs
		slog.Info("Consuming RabbitMQ queue", "queue", queue)
	}

	merged := make(chan delivery)
	var wg sync.WaitGroup
	for queue, msgs := range streams {
		wg.Add(1)
		go func(queue string, msgs <-chan amqp.Delivery) {
			defer wg.Done()
			for m := range msgs {
				select {
				case merged <- delivery{queue: queue, msg: m}:
				case <-ctx.Done():
					return
				}
			}
		}(queue, msgs)
	}

	go func() {
		wg.Wait()
		close(merged)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-merged:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handlers[d.queue](ctx, d.msg.Body); err != nil {
				requeue := retry != nil && retry(err) && !d.msg.Redelivered
				slog.Error("RabbitMQ message rejected", "queue", d.queue, "requeue", requeue, "error", err)
				_ = d.msg.Nack(false, requeue)
				continue
			}
			_ = d.msg.Ack(false)
		}
	}
}

// Publish sends a persistent JSON message to a durable queue.
func (rc *RabbitClient) Publish(ctx context.Context, queue string, v any) error {
	conn, err := amqp.Dial(rc.cfg.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare %s: %w", queue, err)
	}

	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
