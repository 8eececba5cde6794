package main

import (
	"fmt"
	"log"

	"github.com/vutran-dev/relay-be/internal/app"
	"github.com/vutran-dev/relay-be/internal/job"
	"github.com/vutran-dev/relay-be/internal/retry"
	"github.com/vutran-dev/relay-be/internal/store"
	"github.com/vutran-dev/relay-be/internal/worker"
	"github.com/vutran-dev/relay-be/internal/worker/webhook"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := app.LoadConfig("WEBHOOK_WORKER_CONFIG_PATH", "configs/webhook-worker/config.yaml")
	if err != nil {
		return err
	}
	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	base, err := app.Setup(cfg, "webhook-worker")
	if err != nil {
		return err
	}
	defer base.Close()

	slogger := base.Logger.Logger
	db := base.DB.DB()

	handler := webhook.NewHandler(webhook.Config{
		Logger:        slogger,
		Messages:      store.NewMessageStore(db, slogger),
		Conversations: store.NewConversationStore(db, slogger),
		Events:        store.NewEventStore(db, slogger),
		Campaigns:     store.NewCampaignStore(db, slogger),
		Notifier:      base.Rabbit,
		Enqueuer:      base.Rabbit,
		MediaQueue:    cfg.RabbitMQ.Queues.Media,
		ReplyWindow:   cfg.Conversation.ReplyWindow,
	})

	dispatcher := job.NewDispatcher()
	handler.Register(dispatcher)

	w := worker.New(&worker.Config{
		Logger:      slogger,
		Queue:       base.Rabbit,
		DeadLetters: store.NewDeadLetterStore(db, slogger),
		Dispatcher:  dispatcher,
		QueueName:   cfg.RabbitMQ.Queues.Webhook,
		Concurrency: cfg.Worker.Concurrency,
		Prefetch:    cfg.Worker.PrefetchCount,
		Backoff:     retry.NewPolicy(cfg.Worker.BaseBackoff, cfg.Worker.MaxBackoff, cfg.Worker.MaxAttempts),
	})
	return base.RunWorker(w)
}
