package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/review-photo-queue/internal/queue"
	"github.com/cuongbtq/review-photo-queue/internal/worker/domain"
	"github.com/cuongbtq/review-photo-queue/internal/worker/reconcile"
	"github.com/cuongbtq/review-photo-queue/shared/rabbitmq"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

// Broker opens consumers on the shared connection
type Broker interface {
	Consume(queue, consumerTag string, prefetch int) (*rabbitmq.Subscription, error)
}

// Uploader re-hosts a source image and returns its public URL
type Uploader interface {
	Upload(ctx context.Context, source, fileName string) (string, error)
}

// Reconciler points a review at a re-hosted photo
type Reconciler interface {
	Reconcile(ctx context.Context, reviewID, photoURL string) (reconcile.Action, error)
}

// UploadCache remembers source → URL across redeliveries
type UploadCache interface {
	Get(ctx context.Context, source string) (string, bool, error)
	Set(ctx context.Context, source, url string) error
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Broker        Broker
	Queues        []queue.Definition
	Uploader      Uploader
	Reconciler    Reconciler
	Cache         UploadCache // optional
	Concurrency   int
	PrefetchCount int
	JobTimeout    time.Duration
	RequeueFailed bool
	// ResubscribeInterval is the pause before re-opening a consumer whose
	// delivery channel closed
	ResubscribeInterval time.Duration
	// OnResult, when set, observes every finished job after it was settled
	OnResult func(domain.Result)
}

// Worker consumes review photo jobs from the configured queues
type Worker struct {
	logger              *slog.Logger
	broker              Broker
	queues              []queue.Definition
	uploader            Uploader
	reconciler          Reconciler
	cache               UploadCache
	concurrency         int
	prefetchCount       int
	jobTimeout          time.Duration
	requeueFailed       bool
	resubscribeInterval time.Duration
	onResult            func(domain.Result)
	workerID            string
	now                 func() time.Time

	jobsChan chan *envelope
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// envelope pairs a job with the delivery it must be settled on
type envelope struct {
	msg      *domain.JobMessage
	delivery amqp.Delivery
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}

	jobTimeout := cfg.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = time.Minute
	}

	resubscribe := cfg.ResubscribeInterval
	if resubscribe <= 0 {
		resubscribe = 2 * time.Second
	}

	return &Worker{
		logger:              cfg.Logger,
		broker:              cfg.Broker,
		queues:              cfg.Queues,
		uploader:            cfg.Uploader,
		reconciler:          cfg.Reconciler,
		cache:               cfg.Cache,
		concurrency:         concurrency,
		prefetchCount:       prefetch,
		jobTimeout:          jobTimeout,
		requeueFailed:       cfg.RequeueFailed,
		resubscribeInterval: resubscribe,
		onResult:            cfg.OnResult,
		workerID:            "worker-" + uuid.NewString()[:8],
		now:                 time.Now,
		jobsChan:            make(chan *envelope),
		stopChan:            make(chan struct{}),
	}
}

// Start spawns the pool and one consumer loop per queue, then blocks until ctx is canceled
func (w *Worker) Start(ctx context.Context) error {
	if len(w.queues) == 0 {
		return errors.New("worker has no queues to consume")
	}

	names := make([]string, len(w.queues))
	for i, q := range w.queues {
		names[i] = string(q.Name)
	}

	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Any("queues", names),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	w.spawnWorkerPool(ctx)

	g, gctx := errgroup.WithContext(ctx)
	for _, def := range w.queues {
		g.Go(func() error {
			return w.consumeQueue(gctx, def)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("consumer loop failed: %w", err)
	}

	w.logger.Info("Worker context canceled, consumers stopped")
	return nil
}

// Stop waits for in-flight jobs to be settled. Safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")
		close(w.stopChan)
	})
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
