package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/review-photo-queue/internal/worker/domain"
	"github.com/cuongbtq/review-photo-queue/shared/metrics"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned",
		slog.Int("worker_count", w.concurrency),
	)
}

// workerLoop processes jobs one at a time and settles each delivery only
// after its pipeline has finished
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)

	for {
		select {
		case <-w.stopChan:
			return

		case <-ctx.Done():
			return

		case env := <-w.jobsChan:
			result := w.processJob(ctx, env.msg)
			w.settle(workerName, env, result)
		}
	}
}

// settle acks or nacks the delivery for result and records it
func (w *Worker) settle(workerName string, env *envelope, result domain.Result) {
	attrs := []any{
		slog.String("worker_name", workerName),
		slog.String("job_id", result.JobID),
		slog.String("queue", string(result.Queue)),
		slog.String("review_id", result.ReviewID),
		slog.String("outcome", string(result.Outcome)),
		slog.Duration("duration", result.Duration),
	}

	var settleErr error
	switch result.Outcome {
	case domain.OutcomeCompleted:
		settleErr = env.delivery.Ack(false)
		w.logger.Info("Job completed",
			append(attrs,
				slog.String("action", result.Action),
				slog.String("photo_url", result.PhotoURL),
			)...,
		)

	case domain.OutcomeSkipped:
		settleErr = env.delivery.Ack(false)
		w.logger.Warn("Job skipped",
			append(attrs, slog.Any("error", result.Err))...,
		)

	default:
		requeue := w.shouldRequeueJob(env.msg)
		settleErr = env.delivery.Nack(false, requeue)
		w.logger.Error("Job failed",
			append(attrs,
				slog.Bool("requeue", requeue),
				slog.Any("error", result.Err),
			)...,
		)
	}

	if settleErr != nil {
		w.logger.Error("Failed to settle message",
			slog.String("worker_name", workerName),
			slog.String("job_id", result.JobID),
			slog.Any("error", settleErr),
		)
	}

	metrics.JobsProcessed.WithLabelValues(string(result.Queue), string(result.Outcome)).Inc()
	metrics.JobDuration.WithLabelValues(string(result.Queue), string(result.Outcome)).Observe(result.Duration.Seconds())

	if w.onResult != nil {
		w.onResult(result)
	}
}

// shouldRequeueJob gives a failed job one more delivery when requeueing is enabled
func (w *Worker) shouldRequeueJob(msg *domain.JobMessage) bool {
	return w.requeueFailed && !msg.Redelivered
}
