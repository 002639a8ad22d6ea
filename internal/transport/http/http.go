package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/SerAbin1/order-tracking-system/internal/service/models/order"
	"github.com/SerAbin1/order-tracking-system/internal/service/services/healthsvc"
	createorder "github.com/SerAbin1/order-tracking-system/internal/transport/http/create_order"
	getorder "github.com/SerAbin1/order-tracking-system/internal/transport/http/get_order"
	healthhandler "github.com/SerAbin1/order-tracking-system/internal/transport/http/health"
	tracemw "github.com/SerAbin1/order-tracking-system/pkg/http/middleware/trace"
	"github.com/SerAbin1/order-tracking-system/pkg/logger"
	"github.com/SerAbin1/order-tracking-system/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/spf13/viper"
)

type orderService interface {
	Submit(ctx context.Context, o order.Order) (order.Order, error)
	GetOrder(ctx context.Context, id int64) (order.Order, error)
}

type healthService interface {
	Check(ctx context.Context) healthsvc.Report
}

type HTTPTransport struct {
	server    *http.Server
	router    *chi.Mux
	orderSvc  orderService
	healthSvc healthService
	gateway   http.Handler
}

func NewHTTPTransport(
	orderSvc orderService,
	healthSvc healthService,
	gateway http.Handler,
	serverMetrics *metrics.ServerMetrics,
) *HTTPTransport {
	router := newRouter(serverMetrics)
	server := newServer(router)

	return &HTTPTransport{
		server:    server,
		router:    router,
		orderSvc:  orderSvc,
		healthSvc: healthSvc,
		gateway:   gateway,
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Post("/orders", h.createOrder)
	h.router.Get("/orders/{id}", h.getOrder)
	h.router.Get("/health", h.health)
	h.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	if h.gateway != nil {
		h.router.Get("/track/{driverID}", h.gateway.ServeHTTP)
		// Upgrade requests outside the tracking scheme still reach the
		// gateway, which rejects them with close code 1008.
		h.router.NotFound(h.notFound)
	}
}

func (h *HTTPTransport) createOrder(w http.ResponseWriter, r *http.Request) {
	createorder.CreateOrder(w, r, h.orderSvc)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	getorder.GetOrder(w, r, h.orderSvc)
}

func (h *HTTPTransport) health(w http.ResponseWriter, r *http.Request) {
	healthhandler.Health(w, r, h.healthSvc)
}

func (h *HTTPTransport) notFound(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		h.gateway.ServeHTTP(w, r)

		return
	}

	http.NotFound(w, r)
}

func newRouter(serverMetrics *metrics.ServerMetrics) *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(tracemw.NewTraceMiddleware)
	if serverMetrics != nil {
		router.Use(metrics.Middleware(serverMetrics))
	}
	router.Use(logger.NewLoggerMiddleware(slog.Default()))

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:    "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler: router,
	}
}
