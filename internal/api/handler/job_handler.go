package handler

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/review-photo-queue/internal/api/dto"
	"github.com/cuongbtq/review-photo-queue/internal/queue"
	"github.com/cuongbtq/review-photo-queue/shared/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AddJob returns the handler for POST <def.Route>. It authorizes the caller,
// validates the job and publishes exactly one message to def's queue.
func (h *JobHandler) AddJob(def queue.Definition) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.AddJobRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("Unreadable job request",
				slog.String("queue", string(def.Name)),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized"})
			return
		}

		if !h.authorized(req.Key) {
			h.logger.Warn("Rejected job request with invalid key",
				slog.String("queue", string(def.Name)),
				slog.String("ip", c.ClientIP()),
			)
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized"})
			return
		}

		job := queue.Job{ReviewID: req.ReviewID, ImageURL: req.ImageURL}
		if err := job.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Missing review_id or image_url"})
			return
		}

		jobID, err := h.enqueue(c.Request.Context(), def, job)
		if err != nil {
			metrics.JobsEnqueued.WithLabelValues(string(def.Name), "error").Inc()
			h.logger.Error("Failed to add job",
				slog.String("queue", string(def.Name)),
				slog.String("review_id", job.ReviewID),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add job"})
			return
		}

		metrics.JobsEnqueued.WithLabelValues(string(def.Name), "ok").Inc()
		h.logger.Info("Job added to queue",
			slog.String("queue", string(def.Name)),
			slog.String("job_id", jobID),
			slog.String("review_id", job.ReviewID),
		)

		c.JSON(http.StatusOK, dto.AddJobResponse{
			Success: true,
			Message: "Job added to queue",
			Queue:   string(def.Name),
			JobID:   jobID,
		})
	}
}

func (h *JobHandler) authorized(key string) bool {
	if len(h.authKey) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), h.authKey) == 1
}

func (h *JobHandler) enqueue(ctx context.Context, def queue.Definition, job queue.Job) (string, error) {
	body, err := queue.Encode(job)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, h.enqueueTimeout)
	defer cancel()

	jobID := uuid.NewString()
	err = h.publisher.Publish(ctx, def.Queue, amqp.Publishing{
		ContentType: queue.ContentType,
		MessageId:   jobID,
		Type:        string(def.Name),
		Body:        body,
	})
	if err != nil {
		return "", err
	}
	return jobID, nil
}
