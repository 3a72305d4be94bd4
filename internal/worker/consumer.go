package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/review-photo-queue/internal/queue"
	"github.com/cuongbtq/review-photo-queue/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// consumeQueue keeps a consumer open on def until ctx is canceled. Broker
// errors never end the loop; the shared connection redials on its own and
// the loop subscribes again.
func (w *Worker) consumeQueue(ctx context.Context, def queue.Definition) error {
	consumerTag := fmt.Sprintf("%s-%s", w.workerID, def.Name)

	for {
		sub, err := w.broker.Consume(def.Queue, consumerTag, w.prefetchCount)
		if err != nil {
			w.logger.Warn("Failed to start consumer, will retry",
				slog.String("queue", string(def.Name)),
				slog.Duration("retry_after", w.resubscribeInterval),
				slog.Any("error", err),
			)
		} else {
			w.startMessageDispatcher(ctx, def, sub.Deliveries)
			if closeErr := sub.Close(); closeErr != nil {
				w.logger.Debug("Failed to close consumer channel",
					slog.String("queue", string(def.Name)),
					slog.Any("error", closeErr),
				)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.resubscribeInterval):
		}
	}
}

// startMessageDispatcher hands deliveries to the worker pool until the
// delivery channel closes or ctx is canceled
func (w *Worker) startMessageDispatcher(ctx context.Context, def queue.Definition, deliveries <-chan amqp.Delivery) {
	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
		slog.String("queue", string(def.Name)),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled",
				slog.String("queue", string(def.Name)),
			)
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed",
					slog.String("queue", string(def.Name)),
				)
				return
			}

			env := &envelope{
				msg: &domain.JobMessage{
					JobID:       jobID(def, delivery),
					Queue:       def.Name,
					Body:        delivery.Body,
					DeliveryTag: delivery.DeliveryTag,
					Redelivered: delivery.Redelivered,
				},
				delivery: delivery,
			}

			select {
			case w.jobsChan <- env:
				w.logger.Debug("Job dispatched to worker pool",
					slog.String("job_id", env.msg.JobID),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				// hand the message back so another consumer can take it
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.Any("error", nackErr),
					)
				}
				return
			}
		}
	}
}

func jobID(def queue.Definition, d amqp.Delivery) string {
	if d.MessageId != "" {
		return d.MessageId
	}
	return fmt.Sprintf("%s:%d", def.Name, d.DeliveryTag)
}
