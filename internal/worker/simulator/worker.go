package simulator

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/SerAbin1/order-tracking-system/internal/service/models/location"
	"github.com/SerAbin1/order-tracking-system/pkg/metrics"
	"github.com/spf13/viper"
)

const coordinateStep = 0.001

// publisher is the broker surface the worker needs.
type publisher interface {
	Publish(queue string, body []byte) error
}

// Worker emits a synthetic GPS trail for a single driver. Each tick nudges
// both coordinates by a small random amount, so the driver drifts
// north-east from the starting point.
type Worker struct {
	broker   publisher
	metrics  *metrics.PipelineMetrics
	queue    string
	driverID string
	interval time.Duration
	current  location.Coordinates
	now      func() time.Time
	stopCh   chan struct{}
}

// MustNewWorker creates a new simulator worker. The driver identity comes
// from the DRIVER_ID environment variable.
func MustNewWorker(broker publisher, pipelineMetrics *metrics.PipelineMetrics) *Worker {
	driverID := os.Getenv("DRIVER_ID")
	if driverID == "" {
		panic("DRIVER_ID is not set in environment")
	}

	queueName := viper.GetString("rabbitmq.gps_queue")
	if queueName == "" {
		panic("rabbitmq.gps_queue is not set in config")
	}

	intervalMS := viper.GetInt("simulator.update_interval_ms")
	if intervalMS == 0 {
		intervalMS = 1000
	}

	return &Worker{
		broker:   broker,
		metrics:  pipelineMetrics,
		queue:    queueName,
		driverID: driverID,
		interval: time.Duration(intervalMS) * time.Millisecond,
		current: location.Coordinates{
			Latitude:  16.9891,
			Longitude: 82.2475,
		},
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// Start emits location updates until the context is cancelled or Stop is
// called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	slog.Info("Simulator started", "driver_id", w.driverID, "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Simulator shutting down")

			return
		case <-w.stopCh:
			slog.Info("Simulator stopped")

			return
		case <-ticker.C:
			w.sendUpdate()
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

// sendUpdate advances the driver and publishes the new position. A publish
// failure drops the tick; the client keeps the current position and the
// next tick carries the whole accumulated movement.
func (w *Worker) sendUpdate() {
	w.current = nextLocation(w.current)

	sample := location.Sample{
		DriverID:  w.driverID,
		Location:  w.current,
		Timestamp: w.now().UTC(),
	}

	body, err := json.Marshal(sample)
	if err != nil {
		slog.Error("Failed to marshal location sample", "error", err)

		return
	}

	if err := w.broker.Publish(w.queue, body); err != nil {
		slog.Warn("Failed to publish location update, skipping tick",
			"driver_id", w.driverID,
			"error", err,
		)

		return
	}

	if w.metrics != nil {
		w.metrics.Published.WithLabelValues(w.queue).Inc()
	}

	slog.Info("Sent location update",
		"driver_id", w.driverID,
		"latitude", sample.Location.Latitude,
		"longitude", sample.Location.Longitude,
	)
}

func nextLocation(cur location.Coordinates) location.Coordinates {
	return location.Coordinates{
		Latitude:  cur.Latitude + rand.Float64()*coordinateStep,
		Longitude: cur.Longitude + rand.Float64()*coordinateStep,
	}
}
