package models

// ErrorResponse is the {"error": "..."} body returned by /analyze.
type ErrorResponse struct {
	Error string `json:"error"`
}

// APIError is the structured error used by middleware-level failures.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

type APIErrorResponse struct {
	Error APIError `json:"error"`
}
