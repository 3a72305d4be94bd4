package domain

import "time"

// DefaultLanguage is stored on reviews created by the worker
const DefaultLanguage = "en"

// ReviewRecord is a row of the reviews table. The worker only ever writes
// ProfilePhotoURL on existing rows; the other fields belong to the review
// ingestion pipeline.
type ReviewRecord struct {
	ID              int64     `db:"id"`
	ReviewID        string    `db:"google_review_id"`
	ProfilePhotoURL string    `db:"profile_photo_url"`
	PlaceID         string    `db:"google_place_id"`
	AuthorTitle     string    `db:"author_title"`
	AuthorURL       string    `db:"author_url"`
	Rating          int       `db:"rating"`
	Text            string    `db:"text"`
	ReviewTimestamp time.Time `db:"review_timestamp"`
	Language        string    `db:"language"`
	LocationCity    string    `db:"location_city"`
	LocationZip     string    `db:"location_zip"`
	PaginationID    string    `db:"pagination_id"`
	OwnerResponse   string    `db:"owner_response"`
}

// NewReviewRecord returns a fully populated record for a review the worker
// has not seen before: text fields empty, rating zero, timestamp now.
func NewReviewRecord(reviewID, photoURL string, now time.Time) *ReviewRecord {
	return &ReviewRecord{
		ReviewID:        reviewID,
		ProfilePhotoURL: photoURL,
		PlaceID:         "",
		AuthorTitle:     "",
		AuthorURL:       "",
		Rating:          0,
		Text:            "",
		ReviewTimestamp: now.UTC(),
		Language:        DefaultLanguage,
		LocationCity:    "",
		LocationZip:     "",
		PaginationID:    "",
		OwnerResponse:   "",
	}
}
