package uow

import (
	"context"

	"github.com/SerAbin1/order-tracking-system/internal/dal/interfaces/iorderrepo"
	"github.com/SerAbin1/order-tracking-system/internal/dal/interfaces/ioutboxrepo"
	"github.com/SerAbin1/order-tracking-system/internal/dal/postgres"
	orderrepo "github.com/SerAbin1/order-tracking-system/internal/dal/repositories/order/postgres"
	outboxrepo "github.com/SerAbin1/order-tracking-system/internal/dal/repositories/outbox/postgres"
	"github.com/jackc/pgx/v5"
)

// unitOfWork binds the order and outbox repositories to a single pgx
// transaction, so the order row and its outbox row commit atomically.
type unitOfWork struct {
	client     *postgres.Client
	tx         pgx.Tx
	orderRepo  iorderrepo.IOrderRepository
	outboxRepo ioutboxrepo.IOutboxRepository
}

func NewUnitOfWork(client *postgres.Client) *unitOfWork {
	return &unitOfWork{
		client:     client,
		orderRepo:  orderrepo.NewPostgresOrderRepository(client.Pool()),
		outboxRepo: outboxrepo.NewOutboxRepository(client.Pool()),
	}
}

func (u *unitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return u.orderRepo
}

func (u *unitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return u.outboxRepo
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	tx, err := u.client.Pool().Begin(ctx)
	if err != nil {
		return err
	}

	u.tx = tx
	u.orderRepo = orderrepo.NewPostgresOrderRepository(tx)
	u.outboxRepo = outboxrepo.NewOutboxRepository(tx)

	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Commit(ctx)
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Rollback(ctx)
}
