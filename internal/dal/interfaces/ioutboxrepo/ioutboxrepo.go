package ioutboxrepo

import (
	"context"
	"time"

	"github.com/SerAbin1/order-tracking-system/internal/service/models/outbox"
)

// IOutboxRepository defines the contract for the transactional outbox.
type IOutboxRepository interface {
	// Insert stores a pending publication and returns its id.
	Insert(ctx context.Context, msg outbox.Message) (int64, error)

	// GetPendingMessages retrieves messages that are due for publishing.
	GetPendingMessages(ctx context.Context, limit int) ([]outbox.Message, error)

	// Delete removes a message after a successful publish.
	Delete(ctx context.Context, id int64) error

	// UpdateRetry records a failed publish attempt and schedules the next.
	UpdateRetry(ctx context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error
}
