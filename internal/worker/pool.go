package worker

import (
	"context"
	"fmt"
	"log/slog"
)

// spawnPool starts the configured number of processing goroutines.
func (w *Worker) spawnPool(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.poolLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned",
		slog.Int("worker_count", w.concurrency),
	)
}

// poolLoop processes jobs until shutdown. Each job runs to completion before
// the loop checks the stop signal again: cancellation means "stop pulling",
// never "abort mid-call".
func (w *Worker) poolLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started", slog.String("worker_name", workerName))

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping",
				slog.String("worker_name", workerName),
			)
			return

		case delivery, ok := <-w.jobsChan:
			if !ok {
				return
			}
			w.processDelivery(ctx, workerName, delivery)
		}
	}
}
