package config

import (
	"log/slog"

	"github.com/SerAbin1/order-tracking-system/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MustInit loads the .env file and the yaml config, then installs the
// default logger. Panics if the yaml config cannot be read: no component
// can run without queue names and ports.
func MustInit(service string) {
	if err := godotenv.Load("./.env"); err != nil {
		slog.Warn("no .env file loaded", "error", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/order-tracking")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		panic("error while reading config file: " + err.Error())
	}

	setDefaults()
	SetupLogger(service)
}

func setDefaults() {
	viper.SetDefault("server.http.port", "3000")
	viper.SetDefault("rabbitmq.orders_queue", "orders_queue")
	viper.SetDefault("rabbitmq.gps_queue", "gps_updates_queue")
	viper.SetDefault("rabbitmq.max_connect_attempts", 10)
	viper.SetDefault("rabbitmq.outbox.poll_interval_seconds", 10)
	viper.SetDefault("rabbitmq.outbox.batch_size", 100)
	viper.SetDefault("worker.processing_delay_seconds", 5)
	viper.SetDefault("simulator.update_interval_ms", 1000)
	viper.SetDefault("postgres.migrations_path", "./migrations")
}

func SetupLogger(service string) {
	handler := logger.NewHandler(&logger.HandlerOptions{Service: service})
	log := slog.New(handler)
	slog.SetDefault(log)
}
