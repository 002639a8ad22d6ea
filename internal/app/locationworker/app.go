package locationworker

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/SerAbin1/order-tracking-system/internal/dal/rabbitmq"
	"github.com/SerAbin1/order-tracking-system/internal/dal/redis"
	redisrepo "github.com/SerAbin1/order-tracking-system/internal/dal/repositories/location/redis"
	"github.com/SerAbin1/order-tracking-system/internal/otel"
	"github.com/SerAbin1/order-tracking-system/internal/service/services/locationsvc"
	"github.com/SerAbin1/order-tracking-system/internal/transport/consumer"
	"github.com/SerAbin1/order-tracking-system/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// App is the location worker: it drains gps_updates_queue into the
// current-location cache and fans each sample out to the driver channel.
type App struct {
	locationSvc      *locationsvc.LocationService
	locationConsumer *consumer.LocationConsumer
	rabbitClient     *rabbitmq.Client
	redisClient      *redis.Client
	otelController   *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel("location-worker")
	rabbitClient := rabbitmq.MustNewClient()
	redisClient := redis.MustNewClient()

	locationSvc := locationsvc.MustNewLocationService(
		locationsvc.WithLocationRepository(redisrepo.NewLocationRepository(redisClient)),
	)

	locationConsumer := consumer.NewLocationConsumer(
		rabbitClient,
		locationSvc,
		metrics.NewPipelineMetrics("location-worker"),
	)

	return &App{
		locationSvc:      locationSvc,
		locationConsumer: locationConsumer,
		rabbitClient:     rabbitClient,
		redisClient:      redisClient,
		otelController:   otelController,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting location consumer")

		return a.locationConsumer.Run(gCtx)
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
	if err := a.locationConsumer.Shutdown(); err != nil {
		slog.Error("Consumer shutdown error", "error", err)
	} else {
		slog.Info("Consumer stopped gracefully")
	}

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	if err := a.redisClient.Close(); err != nil {
		slog.Error("Redis connection close error", "error", err)
	} else {
		slog.Info("Redis connection closed gracefully")
	}

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Otel trace provider connection close error", "error", err)
	} else {
		slog.Info("Otel trace provider connection closed gracefully")
	}
}
