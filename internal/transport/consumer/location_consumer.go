package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/SerAbin1/order-tracking-system/internal/dal/rabbitmq"
	"github.com/SerAbin1/order-tracking-system/internal/service/models/location"
	"github.com/SerAbin1/order-tracking-system/pkg/metrics"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
)

// locationService represents the service layer interface.
type locationService interface {
	Process(ctx context.Context, sample location.Sample) error
}

// LocationConsumer drains gps_updates_queue and hands each sample to the
// location service, which stores and fans it out.
type LocationConsumer struct {
	client  *rabbitmq.Client
	service locationService
	queue   string
	metrics *metrics.PipelineMetrics
	stop    chan struct{}
	done    chan struct{}
}

// NewLocationConsumer creates a new LocationConsumer.
func NewLocationConsumer(
	client *rabbitmq.Client,
	service locationService,
	pipelineMetrics *metrics.PipelineMetrics,
) *LocationConsumer {
	queueName := viper.GetString("rabbitmq.gps_queue")
	if queueName == "" {
		panic("rabbitmq.gps_queue is not set in config")
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

	return &LocationConsumer{
		client:  client,
		service: service,
		queue:   queueName,
		metrics: pipelineMetrics,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run consumes GPS updates until the context is cancelled or Shutdown is
// called, re-subscribing whenever the delivery channel closes.
func (c *LocationConsumer) Run(ctx context.Context) error {
	defer close(c.done)

	consumerTag := "location-worker-" + uuid.NewString()[:8]

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

func (c *LocationConsumer) processMessage(ctx context.Context, msg amqp.Delivery) {
	ctx, span := otel.Tracer("location-worker").Start(ctx, "LocationConsumer.processMessage")
	defer span.End()

	var sample location.Sample
	if err := json.Unmarshal(msg.Body, &sample); err != nil {
		slog.Error("Failed to unmarshal location sample", "error", err)
		if err := msg.Nack(false, false); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}
		c.observe("rejected")

		return
	}

	if err := c.service.Process(ctx, sample); err != nil {
		slog.Error("Failed to process location sample", "driver_id", sample.DriverID, "error", err)
		if err := msg.Nack(false, true); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}
		c.observe("requeued")

		return
	}

	if err := msg.Ack(false); err != nil {
		slog.Error("Failed to ack message", "driver_id", sample.DriverID, "error", err)

		return
	}

	c.observe("processed")
}

func (c *LocationConsumer) observe(outcome string) {
	if c.metrics != nil {
		c.metrics.Processed.WithLabelValues(c.queue, outcome).Inc()
	}
}

// Shutdown gracefully shuts down the consumer.
func (c *LocationConsumer) Shutdown() error {
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
