package order

import (
	"fmt"
	"time"

	"github.com/SerAbin1/order-tracking-system/internal/service/models/apperrors"
	"github.com/go-playground/validator/v10"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusCreated  Status = "CREATED"
	StatusAccepted Status = "ACCEPTED"
)

// Item is a single order line.
type Item struct {
	SKU string `json:"sku" validate:"required"`
	Qty int    `json:"qty" validate:"gt=0"`
}

// Order represents an order in the system. The queue message for an order
// is always the exact persisted row, marshaled after insert.
type Order struct {
	ID           int64     `json:"id"`
	CustomerID   string    `json:"customer_id"   validate:"required"`
	RestaurantID string    `json:"restaurant_id" validate:"required"`
	Items        []Item    `json:"items"         validate:"required,min=1,dive"`
	TotalPrice   float64   `json:"total_price"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate validates the fields required to accept an order.
func (o *Order) Validate() error {
	if err := validator.New().Struct(o); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	return nil
}
