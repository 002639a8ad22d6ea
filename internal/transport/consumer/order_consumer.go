package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/SerAbin1/order-tracking-system/internal/dal/rabbitmq"
	"github.com/SerAbin1/order-tracking-system/internal/service/models/order"
	"github.com/SerAbin1/order-tracking-system/pkg/metrics"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
)

const resubscribeDelay = 5 * time.Second

// orderService represents the service layer interface.
type orderService interface {
	Accept(ctx context.Context, id int64) error
}

// OrderConsumer processes orders_queue with a single in-flight message.
type OrderConsumer struct {
	client  *rabbitmq.Client
	service orderService
	queue   string
	delay   time.Duration
	metrics *metrics.PipelineMetrics
	stop    chan struct{}
	done    chan struct{}
}

// NewOrderConsumer creates a new OrderConsumer. Declares the durable queue
// and bounds the consumer to one unacknowledged message.
func NewOrderConsumer(
	client *rabbitmq.Client,
	service orderService,
	pipelineMetrics *metrics.PipelineMetrics,
) *OrderConsumer {
	queueName := viper.GetString("rabbitmq.orders_queue")
	if queueName == "" {
		panic("rabbitmq.orders_queue is not set in config")
	}

	if _, err := client.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:    queueName,
		Durable: true,
	}); err != nil {
		panic(err)
	}

	if err := client.Qos(1); err != nil {
		panic(err)
	}

	delaySeconds := viper.GetInt("worker.processing_delay_seconds")

	return &OrderConsumer{
		client:  client,
		service: service,
		queue:   queueName,
		delay:   time.Duration(delaySeconds) * time.Second,
		metrics: pipelineMetrics,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run consumes messages until the context is cancelled or Shutdown is
// called. When the broker drops the connection the delivery channel
// closes; Run re-subscribes once the shared client has reconnected.
func (c *OrderConsumer) Run(ctx context.Context) error {
	defer close(c.done)

	consumerTag := "order-worker-" + uuid.NewString()[:8]

	for {
		msgs, err := c.client.Consume(rabbitmq.ConsumeConfig{
			Queue:    c.queue,
			Consumer: consumerTag,
		})
		if err != nil {
			slog.Warn("Consume failed, waiting for broker", "queue", c.queue, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-c.stop:
				return nil
			case <-time.After(resubscribeDelay):
			}

			continue
		}

		slog.Info("Consumer started", "queue", c.queue, "consumer_tag", consumerTag)

	recv:
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-c.stop:
				return nil
			case msg, ok := <-msgs:
				if !ok {
					slog.Warn("Delivery channel closed, re-subscribing", "queue", c.queue)

					break recv
				}
				c.processMessage(ctx, msg)
			}
		}
	}
}

// processMessage handles a single delivery. The ack happens only after the
// store write succeeds: a crash before the ack makes the broker redeliver,
// and the ACCEPTED transition is idempotent.
func (c *OrderConsumer) processMessage(ctx context.Context, msg amqp.Delivery) {
	ctx, span := otel.Tracer("order-worker").Start(ctx, "OrderConsumer.processMessage")
	defer span.End()

	var ord order.Order
	if err := json.Unmarshal(msg.Body, &ord); err != nil {
		slog.Error("Failed to unmarshal order", "error", err)
		// Malformed payloads never become processable; drop without requeue.
		if err := msg.Nack(false, false); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}
		c.observe("rejected")

		return
	}

	slog.Info("Processing order", "order_id", ord.ID)

	// Simulated downstream work. It deliberately occupies the single
	// in-flight slot: with prefetch=1 no other message arrives until ack.
	select {
	case <-ctx.Done():
		// Left unacknowledged; the broker redelivers after the connection
		// closes.
		return
	case <-time.After(c.delay):
	}

	if err := c.service.Accept(ctx, ord.ID); err != nil {
		slog.Error("Failed to accept order", "order_id", ord.ID, "error", err)
		// Requeue for redelivery; reprocessing converges to the same state.
		if err := msg.Nack(false, true); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}
		c.observe("requeued")

		return
	}

	if err := msg.Ack(false); err != nil {
		slog.Error("Failed to ack message", "order_id", ord.ID, "error", err)

		return
	}

	c.observe("accepted")
	slog.Info("Order accepted", "order_id", ord.ID)
}

func (c *OrderConsumer) observe(outcome string) {
	if c.metrics != nil {
		c.metrics.Processed.WithLabelValues(c.queue, outcome).Inc()
	}
}

// Shutdown gracefully shuts down the consumer.
func (c *OrderConsumer) Shutdown() error {
	slog.Info("Shutting down consumer", "queue", c.queue)
	close(c.stop)

	select {
	case <-c.done:
		slog.Info("Consumer stopped successfully", "queue", c.queue)
	case <-time.After(10 * time.Second):
		slog.Warn("Consumer shutdown timeout", "queue", c.queue)
	}

	return nil
}
