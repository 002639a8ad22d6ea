package iorderrepo

import (
	"context"

	"github.com/SerAbin1/order-tracking-system/internal/service/models/order"
)

// IOrderRepository defines the contract for order storage.
type IOrderRepository interface {
	// Insert persists a new order and returns the row as stored.
	Insert(ctx context.Context, o order.Order) (order.Order, error)

	// UpdateStatus sets the status of an order. Idempotent.
	UpdateStatus(ctx context.Context, id int64, status order.Status) error

	// GetByID fetches a single order.
	GetByID(ctx context.Context, id int64) (order.Order, error)
}
