package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/review-photo-queue/internal/queue"
	"github.com/cuongbtq/review-photo-queue/internal/worker/domain"
	"github.com/cuongbtq/review-photo-queue/internal/worker/upload"
	"github.com/cuongbtq/review-photo-queue/shared/metrics"
)

// processJob runs received → uploading → reconciling → completed for one job.
// It never returns an error: every failure becomes a Result.
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) domain.Result {
	start := w.now()
	result := domain.Result{JobID: msg.JobID, Queue: msg.Queue}

	finish := func(outcome domain.Outcome, err error) domain.Result {
		result.Outcome = outcome
		result.Err = err
		result.Duration = w.now().Sub(start)
		return result
	}

	// received
	job, err := queue.Decode(msg.Body)
	result.ReviewID = job.ReviewID
	if err != nil {
		return finish(domain.OutcomeSkipped, fmt.Errorf("%w: %w", domain.ErrMalformedJob, err))
	}

	w.logger.Debug("Processing job",
		slog.String("job_id", msg.JobID),
		slog.String("review_id", job.ReviewID),
		slog.String("image_url", job.ImageURL),
		slog.Bool("redelivered", msg.Redelivered),
	)

	// in-flight jobs finish on shutdown, bounded by the job timeout
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.jobTimeout)
	defer cancel()

	// uploading
	photoURL, err := w.obtainPhotoURL(jobCtx, job)
	if err != nil {
		return finish(domain.OutcomeFailed, fmt.Errorf("%w: %w", domain.ErrUploadFailed, err))
	}
	result.PhotoURL = photoURL

	// reconciling
	action, err := w.reconciler.Reconcile(jobCtx, job.ReviewID, photoURL)
	if err != nil {
		return finish(domain.OutcomeFailed, fmt.Errorf("%w: %w", domain.ErrReconcileFailed, err))
	}
	result.Action = string(action)
	metrics.Reconciliations.WithLabelValues(string(action)).Inc()

	return finish(domain.OutcomeCompleted, nil)
}

// obtainPhotoURL returns the re-hosted URL for job, uploading only when the
// cache has no entry for the source image
func (w *Worker) obtainPhotoURL(ctx context.Context, job queue.Job) (string, error) {
	if w.cache != nil {
		url, ok, err := w.cache.Get(ctx, job.ImageURL)
		switch {
		case err != nil:
			metrics.UploadCache.WithLabelValues("error").Inc()
			w.logger.Warn("Upload cache lookup failed",
				slog.String("review_id", job.ReviewID),
				slog.Any("error", err),
			)
		case ok && url != "":
			metrics.UploadCache.WithLabelValues("hit").Inc()
			return url, nil
		default:
			metrics.UploadCache.WithLabelValues("miss").Inc()
		}
	}

	url, err := w.uploader.Upload(ctx, job.ImageURL, upload.FileName(job.ReviewID, w.now()))
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", errors.New("uploader returned an empty url")
	}

	if w.cache != nil {
		if err := w.cache.Set(ctx, job.ImageURL, url); err != nil {
			w.logger.Warn("Failed to cache upload",
				slog.String("review_id", job.ReviewID),
				slog.Any("error", err),
			)
		}
	}

	return url, nil
}
