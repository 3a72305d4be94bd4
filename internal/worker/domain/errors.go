package domain

import "errors"

var (
	// ErrMalformedJob is returned when a delivered job cannot be decoded or lacks
	// review_id/image_url. Such jobs are acked and never retried.
	ErrMalformedJob = errors.New("malformed job")

	// ErrUploadFailed is returned when the upload provider did not yield a usable URL
	ErrUploadFailed = errors.New("upload failed")

	// ErrReconcileFailed is returned when the review lookup or write failed
	ErrReconcileFailed = errors.New("reconciliation failed")

	// ErrReviewNotFound is returned by the store when no review matches the id
	ErrReviewNotFound = errors.New("review not found")
)
