package postgresrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/SerAbin1/order-tracking-system/internal/dal/postgres"
	"github.com/SerAbin1/order-tracking-system/internal/service/models/apperrors"
	"github.com/SerAbin1/order-tracking-system/internal/service/models/order"
)

// OrderDal represents the order data access layer model.
type OrderDal struct {
	Id           int64
	CustomerId   string
	RestaurantId string
	Items        []byte
	TotalPrice   float64
	Status       string
	CreatedAt    time.Time
}

// ToModel converts OrderDal to the service layer Order model.
func (o *OrderDal) ToModel() (*order.Order, error) {
	var items []order.Item
	if len(o.Items) > 0 {
		if err := json.Unmarshal(o.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to decode order items: %w", err)
		}
	}

	return &order.Order{
		ID:           o.Id,
		CustomerID:   o.CustomerId,
		RestaurantID: o.RestaurantId,
		Items:        items,
		TotalPrice:   o.TotalPrice,
		Status:       order.Status(o.Status),
		CreatedAt:    o.CreatedAt,
	}, nil
}

// PostgresOrderRepository persists orders.
type PostgresOrderRepository struct {
	conn postgres.DBTX
}

func NewPostgresOrderRepository(conn postgres.DBTX) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
	}
}

// Insert persists a new order and returns the row as stored.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) (order.Order, error) {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to encode order items: %w", err)
	}

	query, args, err := sq.Insert("orders").
		Columns(
			"customer_id",
			"restaurant_id",
			"items",
			"total_price",
			"status",
			"created_at",
		).
		Values(
			o.CustomerID,
			o.RestaurantID,
			itemsJSON,
			o.TotalPrice,
			string(o.Status),
			o.CreatedAt,
		).
		Suffix("RETURNING id, created_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&o.ID, &o.CreatedAt); err != nil {
		return order.Order{}, fmt.Errorf("%w: failed to insert order: %v", apperrors.ErrStore, err)
	}

	return o, nil
}

// UpdateStatus sets the status of an order. Setting the same status twice
// yields the same final state, so redelivered messages are safe.
func (r *PostgresOrderRepository) UpdateStatus(ctx context.Context, id int64, status order.Status) error {
	query, args, err := sq.Update("orders").
		Set("status", string(status)).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: failed to update order status: %v", apperrors.ErrStore, err)
	}

	return nil
}

// GetByID fetches a single order.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id int64) (order.Order, error) {
	query, args, err := sq.Select(
		"id",
		"customer_id",
		"restaurant_id",
		"items",
		"total_price",
		"status",
		"created_at",
	).
		From("orders").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build select query: %w", err)
	}

	var dal OrderDal
	err = r.conn.QueryRow(ctx, query, args...).Scan(
		&dal.Id,
		&dal.CustomerId,
		&dal.RestaurantId,
		&dal.Items,
		&dal.TotalPrice,
		&dal.Status,
		&dal.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Order{}, fmt.Errorf("%w: order %d", apperrors.ErrNotFound, id)
		}

		return order.Order{}, fmt.Errorf("%w: failed to fetch order: %v", apperrors.ErrStore, err)
	}

	model, err := dal.ToModel()
	if err != nil {
		return order.Order{}, err
	}

	return *model, nil
}
