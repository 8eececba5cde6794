package main

import (
	"fmt"
	"log"

	"github.com/vutran-dev/relay-be/internal/app"
	"github.com/vutran-dev/relay-be/internal/job"
	"github.com/vutran-dev/relay-be/internal/provider"
	"github.com/vutran-dev/relay-be/internal/ratelimit"
	"github.com/vutran-dev/relay-be/internal/retry"
	"github.com/vutran-dev/relay-be/internal/store"
	"github.com/vutran-dev/relay-be/internal/worker"
	"github.com/vutran-dev/relay-be/internal/worker/outbound"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := app.LoadConfig("OUTBOUND_WORKER_CONFIG_PATH", "configs/outbound-worker/config.yaml")
	if err != nil {
		return err
	}
	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	base, err := app.Setup(cfg, "outbound-worker")
	if err != nil {
		return err
	}
	defer base.Close()

	slogger := base.Logger.Logger
	db := base.DB.DB()

	limiter := ratelimit.NewRegistry(ratelimit.Config{
		Capacity:         cfg.RateLimit.ChannelBurst,
		RefillRate:       cfg.RateLimit.ChannelRate,
		GlobalCapacity:   cfg.RateLimit.GlobalBurst,
		GlobalRefillRate: cfg.RateLimit.GlobalRate,
	}, slogger)

	handler := outbound.NewHandler(outbound.Config{
		Logger:         slogger,
		Messages:       store.NewMessageStore(db, slogger),
		Idempotency:    store.NewIdempotencyStore(db, slogger),
		Campaigns:      store.NewCampaignStore(db, slogger),
		Notifier:       base.Rabbit,
		Limiter:        limiter,
		Provider:       provider.NewMock(),
		IdempotencyTTL: cfg.Idempotency.TTL,
		SendTimeout:    cfg.Provider.SendTimeout,
		WaitTimeout:    cfg.RateLimit.WaitTimeout,
	})

	dispatcher := job.NewDispatcher()
	handler.Register(dispatcher)

	w := worker.New(&worker.Config{
		Logger:      slogger,
		Queue:       base.Rabbit,
		DeadLetters: store.NewDeadLetterStore(db, slogger),
		Dispatcher:  dispatcher,
		QueueName:   cfg.RabbitMQ.Queues.Outbound,
		Concurrency: cfg.Worker.Concurrency,
		Prefetch:    cfg.Worker.PrefetchCount,
		Backoff:     retry.NewPolicy(cfg.Worker.BaseBackoff, cfg.Worker.MaxBackoff, cfg.Worker.MaxAttempts),
	})
	return base.RunWorker(w)
}
