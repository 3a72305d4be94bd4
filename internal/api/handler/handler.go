package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/review-photo-queue/internal/queue"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends a message to the jobs exchange
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error
	IsConnected() bool
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger         *slog.Logger
	Publisher      Publisher
	Registry       *queue.Registry
	AuthKey        string
	EnqueueTimeout time.Duration
}

// JobHandler handles job submission requests
type JobHandler struct {
	logger         *slog.Logger
	publisher      Publisher
	authKey        []byte
	enqueueTimeout time.Duration
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	timeout := deps.EnqueueTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &JobHandler{
		logger:         deps.Logger,
		publisher:      deps.Publisher,
		authKey:        []byte(deps.AuthKey),
		enqueueTimeout: timeout,
	}
}
