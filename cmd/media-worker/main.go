package main

import (
	"fmt"
	"log"

	"github.com/vutran-dev/relay-be/internal/app"
	"github.com/vutran-dev/relay-be/internal/job"
	"github.com/vutran-dev/relay-be/internal/objectstore"
	"github.com/vutran-dev/relay-be/internal/provider"
	"github.com/vutran-dev/relay-be/internal/retry"
	"github.com/vutran-dev/relay-be/internal/store"
	"github.com/vutran-dev/relay-be/internal/worker"
	"github.com/vutran-dev/relay-be/internal/worker/media"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := app.LoadConfig("MEDIA_WORKER_CONFIG_PATH", "configs/media-worker/config.yaml")
	if err != nil {
		return err
	}
	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	base, err := app.Setup(cfg, "media-worker")
	if err != nil {
		return err
	}
	defer base.Close()

	slogger := base.Logger.Logger
	db := base.DB.DB()

	objects, err := objectstore.NewDisk(cfg.Media.StorageRoot)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	handler := media.NewHandler(media.Config{
		Logger:       slogger,
		Messages:     store.NewMessageStore(db, slogger),
		Provider:     provider.NewMock(),
		Objects:      objects,
		FetchTimeout: cfg.Provider.MediaTimeout,
	})

	dispatcher := job.NewDispatcher()
	handler.Register(dispatcher)

	w := worker.New(&worker.Config{
		Logger:      slogger,
		Queue:       base.Rabbit,
		DeadLetters: store.NewDeadLetterStore(db, slogger),
		Dispatcher:  dispatcher,
		QueueName:   cfg.RabbitMQ.Queues.Media,
		Concurrency: cfg.Worker.Concurrency,
		Prefetch:    cfg.Worker.PrefetchCount,
		Backoff:     retry.NewPolicy(cfg.Worker.BaseBackoff, cfg.Worker.MaxBackoff, cfg.Worker.MaxAttempts),
	})
	return base.RunWorker(w)
}
