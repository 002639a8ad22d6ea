package outbox

import (
	"time"
)

// Message is a queue publication stored transactionally with the state
// change that produced it. Rows are deleted after a successful publish.
type Message struct {
	ID          int64
	QueueName   string
	Payload     []byte
	ContentType string
	RetryCount  int
	MaxRetries  int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	NextRetryAt time.Time
}
