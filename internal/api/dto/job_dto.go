package dto

// AddJobRequest is the body accepted by every enqueue route
type AddJobRequest struct {
	Key      string `json:"key"`
	ReviewID string `json:"review_id"`
	ImageURL string `json:"image_url"`
}

type AddJobResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Queue   string `json:"queue"`
	JobID   string `json:"job_id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
