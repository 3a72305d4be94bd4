package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cuongbtq/review-photo-queue/internal/worker/domain"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{
	"id", "google_review_id", "profile_photo_url", "google_place_id",
	"author_title", "author_url", "rating", "text", "review_timestamp", "language",
	"location_city", "location_zip", "pagination_id", "owner_response",
}

func newTestStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStorage(sqlx.NewDb(db, "postgres"), logger), mock
}

func TestFindByReviewID(t *testing.T) {
	s, mock := newTestStorage(t)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM reviews")).
		WithArgs("rev-42").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			int64(7), "rev-42", "https://cdn/x.jpg", "place-1",
			"Jane", "https://maps/jane", 5, "great", ts, "en",
			"Hanoi", "100000", "page-3", "thanks",
		))

	rec, err := s.FindByReviewID(context.Background(), "rev-42")
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.ID)
	assert.Equal(t, "https://cdn/x.jpg", rec.ProfilePhotoURL)
	assert.Equal(t, 5, rec.Rating)
	assert.Equal(t, "thanks", rec.OwnerResponse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByReviewID_NotFound(t *testing.T) {
	s, mock := newTestStorage(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM reviews")).
		WithArgs("rev-404").
		WillReturnRows(sqlmock.NewRows(columns))

	rec, err := s.FindByReviewID(context.Background(), "rev-404")
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, domain.ErrReviewNotFound)
}

func TestFindByReviewID_QueryError(t *testing.T) {
	s, mock := newTestStorage(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM reviews")).
		WillReturnError(errors.New("connection reset"))

	_, err := s.FindByReviewID(context.Background(), "rev-42")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrReviewNotFound)
	assert.Contains(t, err.Error(), "failed to get review")
}

func TestUpdatePhotoURL(t *testing.T) {
	tests := []struct {
		name    string
		rows    int64
		wantErr error
	}{
		{name: "one row", rows: 1},
		{name: "duplicate rows still succeed", rows: 2},
		{name: "no rows", rows: 0, wantErr: domain.ErrReviewNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newTestStorage(t)

			mock.ExpectExec(regexp.QuoteMeta("UPDATE reviews")).
				WithArgs("https://cdn/y.jpg", "rev-42").
				WillReturnResult(sqlmock.NewResult(0, tt.rows))

			err := s.UpdatePhotoURL(context.Background(), "rev-42", "https://cdn/y.jpg")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestInsert(t *testing.T) {
	s, mock := newTestStorage(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := domain.NewReviewRecord("rev-42", "https://cdn/x.jpg", now)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO reviews")).
		WithArgs(
			"rev-42", "https://cdn/x.jpg", "", "",
			"", 0, "", now, domain.DefaultLanguage,
			"", "", "", "",
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	require.NoError(t, s.Insert(context.Background(), rec))
	assert.Equal(t, int64(11), rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_Error(t *testing.T) {
	s, mock := newTestStorage(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO reviews")).
		WillReturnError(errors.New("null value in column"))

	err := s.Insert(context.Background(), domain.NewReviewRecord("rev-42", "u", time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert review")
}
