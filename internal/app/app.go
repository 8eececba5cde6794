// Package app holds the process bootstrap shared by every worker binary and
// the admin API: env loading, config, logger, and backing-service clients.
package app

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vutran-dev/relay-be/internal/config"
	"github.com/vutran-dev/relay-be/internal/worker"
	"github.com/vutran-dev/relay-be/shared/logger"
	"github.com/vutran-dev/relay-be/shared/postgresql"
	"github.com/vutran-dev/relay-be/shared/rabbitmq"
)

// LoadConfig loads .env, resolves the config path from flag or env var, and
// parses the configuration file. Call once per process, before Setup.
func LoadConfig(envVar, defaultPath string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	configPath := os.Getenv(envVar)
	if configPath == "" {
		configPath = defaultPath
	}
	flagPath := flag.String("config", configPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*flagPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Base bundles the backing-service clients every process needs.
type Base struct {
	Cfg    *config.Config
	Logger *logger.Logger
	DB     *postgresql.Client
	Rabbit *rabbitmq.Client
}

// Setup initializes the logger and connects to PostgreSQL and RabbitMQ.
func Setup(cfg *config.Config, serviceName string) (*Base, error) {
	appLogger, err := logger.New(&logger.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       cfg.Logging.Output,
		EnableSource: cfg.Logging.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting service",
		slog.String("service", serviceName),
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, appLogger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	appLogger.Info("Database connection established")

	rabbitClient, err := rabbitmq.NewClient(&rabbitmq.Config{
		Host:           cfg.RabbitMQ.Host,
		Port:           cfg.RabbitMQ.Port,
		User:           cfg.RabbitMQ.User,
		Password:       cfg.RabbitMQ.Password,
		VHost:          cfg.RabbitMQ.VHost,
		JobExchange:    cfg.RabbitMQ.JobExchange,
		NotifyExchange: cfg.RabbitMQ.NotifyExchange,
		Queues:         cfg.RabbitMQ.Queues.All(),
		RetryAttempts:  cfg.RabbitMQ.Connection.RetryAttempts,
		RetryInterval:  cfg.RabbitMQ.Connection.RetryInterval,
		Heartbeat:      cfg.RabbitMQ.Connection.Heartbeat,
	}, appLogger.Logger)
	if err != nil {
		dbClient.Close()
		return nil, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	appLogger.Info("RabbitMQ connection established")

	return &Base{
		Cfg:    cfg,
		Logger: appLogger,
		DB:     dbClient,
		Rabbit: rabbitClient,
	}, nil
}

// Close releases the backing-service clients.
func (b *Base) Close() {
	if b.DB != nil {
		b.DB.Close()
	}
	if b.Rabbit != nil {
		b.Rabbit.Close()
	}
}

// RunWorker starts the worker and blocks until SIGINT/SIGTERM or a worker
// error, then stops it bounded by the configured shutdown timeout. Jobs in
// flight finish; queued jobs stay on the broker.
func (b *Base) RunWorker(w *worker.Worker) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := w.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		b.Logger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		b.Logger.Error("Worker error", slog.Any("error", err))
		return err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), b.Cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
		b.Logger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		b.Logger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}
	return nil
}
