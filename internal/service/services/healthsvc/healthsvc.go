package healthsvc

import (
	"context"
	"time"
)

const (
	StatusOK    = "ok"
	StatusError = "error"

	pingTimeout = 2 * time.Second
)

// pinger is the store surface the probe needs.
type pinger interface {
	Ping(ctx context.Context) error
}

// brokerState reports the broker connection flag maintained by the
// connection manager.
type brokerState interface {
	IsConnected() bool
}

// Services holds the per-dependency results of a health check.
type Services struct {
	Database      string `json:"database"`
	MessageBroker string `json:"messageBroker"`
}

// Report is the aggregate liveness result.
type Report struct {
	Status    string    `json:"status"`
	Services  Services  `json:"services"`
	Timestamp time.Time `json:"timestamp"`
}

// Healthy reports whether every sub-check passed.
func (r Report) Healthy() bool {
	return r.Status == StatusOK
}

// HealthService reports aggregate liveness of the store and the broker
// connection. Read-only; never mutates state.
type HealthService struct {
	store  pinger
	broker brokerState
}

// option is a function that configures the HealthService.
type option func(*HealthService)

// MustNewHealthService creates a new HealthService.
func MustNewHealthService(opts ...option) *HealthService {
	s := &HealthService{}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// WithStore sets the store pinger.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithStore(store pinger) option {
	return func(s *HealthService) {
		s.store = store
	}
}

// WithBroker sets the broker state source.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithBroker(broker brokerState) option {
	return func(s *HealthService) {
		s.broker = broker
	}
}

// Check runs a trivial store read and reads the broker connection flag.
// Either sub-check failing degrades the composite status.
func (s *HealthService) Check(ctx context.Context) Report {
	report := Report{
		Status: StatusOK,
		Services: Services{
			Database:      StatusOK,
			MessageBroker: StatusOK,
		},
		Timestamp: time.Now(),
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if s.store == nil || s.store.Ping(pingCtx) != nil {
		report.Services.Database = StatusError
		report.Status = StatusError
	}

	if s.broker == nil || !s.broker.IsConnected() {
		report.Services.MessageBroker = StatusError
		report.Status = StatusError
	}

	return report
}
