package ordersvc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/SerAbin1/order-tracking-system/internal/dal/interfaces/iorderrepo"
	"github.com/SerAbin1/order-tracking-system/internal/dal/interfaces/ioutboxrepo"
	"github.com/SerAbin1/order-tracking-system/internal/dal/postgres"
	outboxrepo "github.com/SerAbin1/order-tracking-system/internal/dal/repositories/outbox/postgres"
	"github.com/SerAbin1/order-tracking-system/internal/dal/uow"
	"github.com/SerAbin1/order-tracking-system/internal/service/models/apperrors"
	"github.com/SerAbin1/order-tracking-system/internal/service/models/order"
	"github.com/SerAbin1/order-tracking-system/internal/service/models/outbox"
	"github.com/SerAbin1/order-tracking-system/pkg/metrics"
	"github.com/spf13/viper"
)

const maxPublishRetries = 10

// publisher is the broker surface the service needs.
type publisher interface {
	Publish(queue string, body []byte) error
}

type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() iorderrepo.IOrderRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
}

// OrderService is a service for managing orders.
type OrderService struct {
	pgClient   *postgres.Client
	broker     publisher
	outboxRepo ioutboxrepo.IOutboxRepository
	metrics    *metrics.PipelineMetrics
	queueName  string
	newUOW     func() unitOfWork
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{
		queueName: viper.GetString("rabbitmq.orders_queue"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		s.newUOW = func() unitOfWork {
			return uow.NewUnitOfWork(s.pgClient)
		}
	}
	if s.outboxRepo == nil && s.pgClient != nil {
		s.outboxRepo = outboxrepo.NewOutboxRepository(s.pgClient.Pool())
	}

	return s
}

// WithPostgresClient sets the Postgres client for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *OrderService) {
		s.pgClient = pgClient
	}
}

// WithBroker sets the broker used for the immediate publish after commit.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithBroker(broker publisher) option {
	return func(s *OrderService) {
		s.broker = broker
	}
}

// WithPipelineMetrics sets the pipeline metrics.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPipelineMetrics(m *metrics.PipelineMetrics) option {
	return func(s *OrderService) {
		s.metrics = m
	}
}

// Submit validates the order, persists it together with its outbox row in
// one transaction, then publishes the persisted row. The queue message is
// always the exact persisted row, so the consumer never sees an order that
// is absent from the store. If the immediate publish fails the outbox
// worker sweeps the row later: the order is never silently lost.
func (s *OrderService) Submit(ctx context.Context, o order.Order) (order.Order, error) {
	if err := o.Validate(); err != nil {
		return order.Order{}, err
	}

	now := time.Now()
	o.Status = order.StatusCreated
	o.CreatedAt = now

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return order.Order{}, fmt.Errorf("%w: failed to begin transaction: %v", apperrors.ErrStore, err)
	}

	persisted, err := work.OrderRepository().Insert(ctx, o)
	if err != nil {
		_ = work.Rollback(ctx)

		return order.Order{}, err
	}

	payload, err := json.Marshal(persisted)
	if err != nil {
		_ = work.Rollback(ctx)

		return order.Order{}, fmt.Errorf("failed to encode order: %w", err)
	}

	outboxID, err := work.OutboxRepository().Insert(ctx, outbox.Message{
		QueueName:   s.queueName,
		Payload:     payload,
		ContentType: "application/json",
		MaxRetries:  maxPublishRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
		NextRetryAt: now,
	})
	if err != nil {
		_ = work.Rollback(ctx)

		return order.Order{}, fmt.Errorf("%w: failed to insert outbox message: %v", apperrors.ErrStore, err)
	}

	if err := work.Commit(ctx); err != nil {
		return order.Order{}, fmt.Errorf("%w: failed to commit order: %v", apperrors.ErrStore, err)
	}

	s.publishNow(ctx, outboxID, payload)

	return persisted, nil
}

// publishNow attempts the post-commit publish and clears the outbox row on
// success. A failure here is not an error for the caller: the order exists
// in the store and the outbox worker retries the publish.
func (s *OrderService) publishNow(ctx context.Context, outboxID int64, payload []byte) {
	if s.broker == nil || s.outboxRepo == nil {
		return
	}

	if err := s.broker.Publish(s.queueName, payload); err != nil {
		slog.Warn("Immediate publish failed, outbox worker will retry",
			"outbox_id", outboxID,
			"error", err,
		)

		return
	}

	if s.metrics != nil {
		s.metrics.Published.WithLabelValues(s.queueName).Inc()
	}

	if err := s.outboxRepo.Delete(ctx, outboxID); err != nil {
		// The outbox worker may republish; the consumer status write is
		// idempotent, so a duplicate is harmless.
		slog.Error("Failed to delete outbox row after publish", "outbox_id", outboxID, "error", err)

		return
	}

	slog.Info("Order published", "queue", s.queueName, "outbox_id", outboxID)
}

// Accept transitions an order to ACCEPTED. Idempotent: applying the
// transition twice yields the same final state.
func (s *OrderService) Accept(ctx context.Context, id int64) error {
	work := s.newUOW()

	return work.OrderRepository().UpdateStatus(ctx, id, order.StatusAccepted)
}

// GetOrder retrieves a single order.
func (s *OrderService) GetOrder(ctx context.Context, id int64) (order.Order, error) {
	work := s.newUOW()

	return work.OrderRepository().GetByID(ctx, id)
}
