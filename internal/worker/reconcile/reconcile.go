// Package reconcile decides whether a re-hosted photo updates an existing
// review or creates a new one.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/review-photo-queue/internal/worker/domain"
)

// Action reports which branch Reconcile took
type Action string

const (
	ActionUpdated  Action = "updated"
	ActionInserted Action = "inserted"
)

var (
	// ErrLookupFailed means nothing was written
	ErrLookupFailed = errors.New("review lookup failed")
	// ErrWriteFailed wraps update and insert errors
	ErrWriteFailed = errors.New("review write failed")
)

// Store is the persistence contract the engine needs.
// FindByReviewID returns domain.ErrReviewNotFound when no row exists.
type Store interface {
	FindByReviewID(ctx context.Context, reviewID string) (*domain.ReviewRecord, error)
	UpdatePhotoURL(ctx context.Context, reviewID, photoURL string) error
	Insert(ctx context.Context, rec *domain.ReviewRecord) error
}

// Engine is stateless apart from its store and is safe for concurrent use.
type Engine struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates a reconciliation engine over store
func NewEngine(store Store, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Reconcile points the review identified by reviewID at photoURL. The lookup
// is by review id only, so repeated uploads for one review never create a
// second row.
func (e *Engine) Reconcile(ctx context.Context, reviewID, photoURL string) (Action, error) {
	_, err := e.store.FindByReviewID(ctx, reviewID)
	switch {
	case err == nil:
		if err := e.store.UpdatePhotoURL(ctx, reviewID, photoURL); err != nil {
			return "", fmt.Errorf("%w: update %s: %w", ErrWriteFailed, reviewID, err)
		}

		e.logger.Info("Review photo updated",
			slog.String("review_id", reviewID),
			slog.String("photo_url", photoURL),
		)
		return ActionUpdated, nil

	case errors.Is(err, domain.ErrReviewNotFound):
		rec := domain.NewReviewRecord(reviewID, photoURL, e.now())
		if err := e.store.Insert(ctx, rec); err != nil {
			return "", fmt.Errorf("%w: insert %s: %w", ErrWriteFailed, reviewID, err)
		}

		e.logger.Info("Review created with photo",
			slog.String("review_id", reviewID),
			slog.String("photo_url", photoURL),
			slog.Int64("id", rec.ID),
		)
		return ActionInserted, nil

	default:
		return "", fmt.Errorf("%w: %s: %w", ErrLookupFailed, reviewID, err)
	}
}
