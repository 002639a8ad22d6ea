package createorder

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/SerAbin1/order-tracking-system/internal/service/models/apperrors"
	"github.com/SerAbin1/order-tracking-system/internal/service/models/order"
	"github.com/go-playground/validator/v10"
)

// service is an interface for the service layer.
type service interface {
	Submit(ctx context.Context, o order.Order) (order.Order, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

// itemInCreateOrderRequest represents an item in a create order request.
type itemInCreateOrderRequest struct {
	SKU string `json:"sku" validate:"required"`
	Qty int    `json:"qty" validate:"gt=0"`
}

// createOrderRequest represents a create order request.
type createOrderRequest struct {
	CustomerID   string                     `json:"customer_id"   validate:"required"`
	RestaurantID string                     `json:"restaurant_id" validate:"required"`
	Items        []itemInCreateOrderRequest `json:"items"         validate:"required,min=1,dive"`
	TotalPrice   float64                    `json:"total_price"`
}

// Validate validates the create order request.
func (r *createOrderRequest) Validate() error {
	return validator.New().Struct(r)
}

// toModel converts createOrderRequest to order.Order.
func (r *createOrderRequest) toModel() order.Order {
	items := make([]order.Item, len(r.Items))
	for i, item := range r.Items {
		items[i] = order.Item{
			SKU: item.SKU,
			Qty: item.Qty,
		}
	}

	return order.Order{
		CustomerID:   r.CustomerID,
		RestaurantID: r.RestaurantID,
		Items:        items,
		TotalPrice:   r.TotalPrice,
	}
}

// CreateOrder handles the order creation request.
func CreateOrder(w http.ResponseWriter, r *http.Request, service service) {
	req := createOrderRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		slog.Error("Error decoding request body for create order", "error", err)

		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		slog.Error("Error validating request body for create order", "error", err)

		return
	}

	created, err := service.Submit(r.Context(), req.toModel())
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		slog.Error("Error creating order", "error", err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(created); err != nil {
		slog.Error("Error writing response for create order", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
