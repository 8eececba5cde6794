package main

import (
	"fmt"
	"log"

	"github.com/vutran-dev/relay-be/internal/app"
	"github.com/vutran-dev/relay-be/internal/job"
	"github.com/vutran-dev/relay-be/internal/retry"
	"github.com/vutran-dev/relay-be/internal/store"
	"github.com/vutran-dev/relay-be/internal/worker"
	"github.com/vutran-dev/relay-be/internal/worker/campaign"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := app.LoadConfig("CAMPAIGN_WORKER_CONFIG_PATH", "configs/campaign-worker/config.yaml")
	if err != nil {
		return err
	}
	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	base, err := app.Setup(cfg, "campaign-worker")
	if err != nil {
		return err
	}
	defer base.Close()

	slogger := base.Logger.Logger
	db := base.DB.DB()

	handler := campaign.NewHandler(campaign.Config{
		Logger:        slogger,
		Campaigns:     store.NewCampaignStore(db, slogger),
		Enqueuer:      base.Rabbit,
		OutboundQueue: cfg.RabbitMQ.Queues.Outbound,
		Parallelism:   cfg.Worker.Concurrency,
	})

	dispatcher := job.NewDispatcher()
	handler.Register(dispatcher)

	w := worker.New(&worker.Config{
		Logger:      slogger,
		Queue:       base.Rabbit,
		DeadLetters: store.NewDeadLetterStore(db, slogger),
		Dispatcher:  dispatcher,
		QueueName:   cfg.RabbitMQ.Queues.Campaign,
		Concurrency: cfg.Worker.Concurrency,
		Prefetch:    cfg.Worker.PrefetchCount,
		Backoff:     retry.NewPolicy(cfg.Worker.BaseBackoff, cfg.Worker.MaxBackoff, cfg.Worker.MaxAttempts),
	})
	return base.RunWorker(w)
}
