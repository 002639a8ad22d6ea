package simulator

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/SerAbin1/order-tracking-system/internal/dal/rabbitmq"
	simworker "github.com/SerAbin1/order-tracking-system/internal/worker/simulator"
	"github.com/SerAbin1/order-tracking-system/pkg/metrics"
	"github.com/spf13/viper"
)

// App is the driver simulator: a single synthetic driver publishing a GPS
// trail for demos and end-to-end checks.
type App struct {
	worker       *simworker.Worker
	rabbitClient *rabbitmq.Client
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	rabbitClient := rabbitmq.MustNewClient()

	if _, err := rabbitClient.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:    viper.GetString("rabbitmq.gps_queue"),
		Durable: true,
	}); err != nil {
		panic(err)
	}

	worker := simworker.MustNewWorker(rabbitClient, metrics.NewPipelineMetrics("simulator"))

	return &App{
		worker:       worker,
		rabbitClient: rabbitClient,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.worker.Start(ctx)

	slog.Info("Shutdown signal received")

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	slog.Info("Application shutdown complete")
}
