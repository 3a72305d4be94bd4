package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ContentType of every job body published to the broker
const ContentType = "application/json"

var ErrMissingField = errors.New("missing review_id or image_url")

// Job is the payload enqueued by the API and consumed by the worker.
type Job struct {
	ReviewID string `json:"review_id"`
	ImageURL string `json:"image_url"`
}

// Validate reports ErrMissingField when either field is empty.
func (j Job) Validate() error {
	if strings.TrimSpace(j.ReviewID) == "" || strings.TrimSpace(j.ImageURL) == "" {
		return ErrMissingField
	}
	return nil
}

// Encode serializes the job for publishing.
func Encode(j Job) ([]byte, error) {
	body, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job: %w", err)
	}
	return body, nil
}

// Decode parses and validates a job body.
func Decode(body []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(body, &j); err != nil {
		return Job{}, fmt.Errorf("failed to decode job: %w", err)
	}
	if err := j.Validate(); err != nil {
		return j, err
	}
	return j, nil
}
