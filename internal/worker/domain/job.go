package domain

import (
	"time"

	"github.com/cuongbtq/review-photo-queue/internal/queue"
)

// JobMessage is a delivered job handed from the dispatcher to the worker pool
type JobMessage struct {
	JobID       string
	Queue       queue.Name
	Body        []byte
	DeliveryTag uint64
	Redelivered bool
}

// Outcome is the terminal state of one processed job
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Result is what the pipeline reports for every job it finishes.
type Result struct {
	JobID    string
	Queue    queue.Name
	ReviewID string
	PhotoURL string
	Action   string // updated or inserted, set on completion
	Outcome  Outcome
	Err      error
	Duration time.Duration
}
