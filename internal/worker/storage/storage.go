package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/review-photo-queue/internal/worker/domain"
	"github.com/jmoiron/sqlx"
)

const reviewColumns = `id, google_review_id, profile_photo_url, google_place_id,
	author_title, author_url, rating, text, review_timestamp, language,
	location_city, location_zip, pagination_id, owner_response`

// Storage handles all review reads and writes for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// FindByReviewID returns the first review with the given external id, or
// domain.ErrReviewNotFound
func (s *Storage) FindByReviewID(ctx context.Context, reviewID string) (*domain.ReviewRecord, error) {
	query := `SELECT ` + reviewColumns + `
		FROM reviews
		WHERE google_review_id = $1
		ORDER BY id
		LIMIT 1`

	var rec domain.ReviewRecord
	if err := s.db.GetContext(ctx, &rec, query, reviewID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	return &rec, nil
}

// UpdatePhotoURL sets profile_photo_url on every row for reviewID and leaves
// all other columns untouched
func (s *Storage) UpdatePhotoURL(ctx context.Context, reviewID, photoURL string) error {
	query := `
		UPDATE reviews
		SET profile_photo_url = $1
		WHERE google_review_id = $2
	`

	result, err := s.db.ExecContext(ctx, query, photoURL, reviewID)
	if err != nil {
		return fmt.Errorf("failed to update review photo: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrReviewNotFound
	}

	if rowsAffected > 1 {
		s.logger.Warn("Photo update touched more than one review row",
			slog.String("review_id", reviewID),
			slog.Int64("rows", rowsAffected),
		)
	}

	return nil
}

// Insert writes a complete review row and sets rec.ID
func (s *Storage) Insert(ctx context.Context, rec *domain.ReviewRecord) error {
	query := `
		INSERT INTO reviews (
			google_review_id, profile_photo_url, google_place_id, author_title,
			author_url, rating, text, review_timestamp, language,
			location_city, location_zip, pagination_id, owner_response
		) VALUES (
			:google_review_id, :profile_photo_url, :google_place_id, :author_title,
			:author_url, :rating, :text, :review_timestamp, :language,
			:location_city, :location_zip, :pagination_id, :owner_response
		)
		RETURNING id
	`

	rows, err := s.db.NamedQueryContext(ctx, query, rec)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&rec.ID); err != nil {
			return fmt.Errorf("failed to scan review id: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}

	return nil
}
