package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SerAbin1/order-tracking-system/internal/dal/postgres"
	"github.com/SerAbin1/order-tracking-system/internal/dal/rabbitmq"
	"github.com/SerAbin1/order-tracking-system/internal/dal/redis"
	redisrepo "github.com/SerAbin1/order-tracking-system/internal/dal/repositories/location/redis"
	outboxrepo "github.com/SerAbin1/order-tracking-system/internal/dal/repositories/outbox/postgres"
	"github.com/SerAbin1/order-tracking-system/internal/otel"
	"github.com/SerAbin1/order-tracking-system/internal/service/services/healthsvc"
	"github.com/SerAbin1/order-tracking-system/internal/service/services/ordersvc"
	httptransport "github.com/SerAbin1/order-tracking-system/internal/transport/http"
	"github.com/SerAbin1/order-tracking-system/internal/transport/ws"
	outboxworker "github.com/SerAbin1/order-tracking-system/internal/worker/outbox"
	"github.com/SerAbin1/order-tracking-system/pkg/metrics"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// App is the public-facing service: the order intake API, the health
// probe, the websocket tracking gateway, and the outbox sweeper.
type App struct {
	orderSvc       *ordersvc.OrderService
	healthSvc      *healthsvc.HealthService
	transport      *httptransport.HTTPTransport
	outboxWorker   *outboxworker.Worker
	rabbitClient   *rabbitmq.Client
	postgresClient *postgres.Client
	redisClient    *redis.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel("api")
	rabbitClient := rabbitmq.MustNewClient()
	postgresClient := postgres.MustNewClient()
	redisClient := redis.MustNewClient()

	// The API is the publishing side of the order pipeline, so it owns the
	// queue declaration as well.
	if _, err := rabbitClient.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:    viper.GetString("rabbitmq.orders_queue"),
		Durable: true,
	}); err != nil {
		panic(err)
	}

	pipelineMetrics := metrics.NewPipelineMetrics("api")

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithPostgresClient(postgresClient),
		ordersvc.WithBroker(rabbitClient),
		ordersvc.WithPipelineMetrics(pipelineMetrics),
	)

	healthSvc := healthsvc.MustNewHealthService(
		healthsvc.WithStore(postgresClient),
		healthsvc.WithBroker(rabbitClient),
	)

	locationRepo := redisrepo.NewLocationRepository(redisClient)

	gateway := ws.NewGateway(
		ws.SubscriberFunc(func(ctx context.Context, driverID string) (ws.Subscription, error) {
			return locationRepo.Subscribe(ctx, driverID)
		}),
		ws.WithActiveTrackersGauge(pipelineMetrics.TrackersActive),
	)

	transport := httptransport.NewHTTPTransport(
		orderSvc,
		healthSvc,
		gateway,
		metrics.NewServerMetrics("api"),
	)
	transport.RegisterRoutes()

	outboxRepository := outboxrepo.NewOutboxRepository(postgresClient.Pool())
	outboxWorker := outboxworker.NewWorker(outboxRepository, rabbitClient, pipelineMetrics)

	return &App{
		orderSvc:       orderSvc,
		healthSvc:      healthSvc,
		transport:      transport,
		outboxWorker:   outboxWorker,
		rabbitClient:   rabbitClient,
		postgresClient: postgresClient,
		redisClient:    redisClient,
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
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		slog.Info("Starting outbox worker")
		a.outboxWorker.Start(gCtx)

		return nil
	})

	<-gCtx.Done()
	slog.Info("Shutdown signal received")

	a.gracefulShutdown()

	if err := g.Wait(); err != nil {
		slog.Error("Application error", "error", err)
	}

	slog.Info("Application shutdown complete")
}

// gracefulShutdown drains the HTTP server first so in-flight requests
// finish before the connections behind them are closed.
func (a *App) gracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.transport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	a.outboxWorker.Stop()
	slog.Info("Outbox worker stopped gracefully")

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

	a.postgresClient.Close()

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Otel trace provider connection close error", "error", err)
	} else {
		slog.Info("Otel trace provider connection closed gracefully")
	}
}
