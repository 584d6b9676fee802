package types

// Status constants for API responses.
const (
	StatusOK     = "ok"
	StatusError  = "error"
	StatusQueued = "queued"
)

// BaseResponse contains fields common to all API responses.
type BaseResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewError builds the standard error body.
func NewError(message string) ErrorResponse {
	return ErrorResponse{Status: StatusError, Message: message}
}

// SubmissionResponse acknowledges queued on-demand work. Progress
// arrives on the event stream under the same id.
type SubmissionResponse struct {
	Status       string `json:"status"`
	SubmissionID string `json:"submission_id"`
}
