package orderworker

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/SerAbin1/order-tracking-system/internal/dal/postgres"
	"github.com/SerAbin1/order-tracking-system/internal/dal/rabbitmq"
	"github.com/SerAbin1/order-tracking-system/internal/otel"
	"github.com/SerAbin1/order-tracking-system/internal/service/services/ordersvc"
	"github.com/SerAbin1/order-tracking-system/internal/transport/consumer"
	"github.com/SerAbin1/order-tracking-system/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// App is the order worker: it drains orders_queue one message at a time
// and moves accepted orders forward in the store.
type App struct {
	orderSvc       *ordersvc.OrderService
	orderConsumer  *consumer.OrderConsumer
	rabbitClient   *rabbitmq.Client
	postgresClient *postgres.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel("order-worker")
	rabbitClient := rabbitmq.MustNewClient()
	postgresClient := postgres.MustNewClient()

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithPostgresClient(postgresClient),
	)

	orderConsumer := consumer.NewOrderConsumer(
		rabbitClient,
		orderSvc,
		metrics.NewPipelineMetrics("order-worker"),
	)

	return &App{
		orderSvc:       orderSvc,
		orderConsumer:  orderConsumer,
		rabbitClient:   rabbitClient,
		postgresClient: postgresClient,
		otelController: otelController,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting order consumer")

		return a.orderConsumer.Run(gCtx)
	})

	<-gCtx.Done()
	slog.Info("Shutdown signal received")

	a.gracefulShutdown()

	if err := g.Wait(); err != nil {
		slog.Error("Application error", "error", err)
	}

	slog.Info("Application shutdown complete")
}

func (a *App) gracefulShutdown() {
	if err := a.orderConsumer.Shutdown(); err != nil {
		slog.Error("Consumer shutdown error", "error", err)
	} else {
		slog.Info("Consumer stopped gracefully")
	}

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	a.postgresClient.Close()

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Otel trace provider connection close error", "error", err)
	} else {
		slog.Info("Otel trace provider connection closed gracefully")
	}
}
