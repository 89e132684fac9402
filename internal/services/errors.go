package services

import "fmt"

type InvalidRequestError struct{ Message string }

func (e *InvalidRequestError) Error() string { return e.Message }

type InvalidImageError struct{ Message string }

func (e *InvalidImageError) Error() string { return e.Message }

type MissingUploadError struct{ Message string }

func (e *MissingUploadError) Error() string { return e.Message }

type ModelUnavailableError struct{ Message string }

func (e *ModelUnavailableError) Error() string { return e.Message }

// PredictionError wraps an unexpected inference failure.
type PredictionError struct{ Err error }

func (e *PredictionError) Error() string { return fmt.Sprintf("Prediction failed: %v", e.Err) }

func (e *PredictionError) Unwrap() error { return e.Err }

// LLMCallError records why the external chat model could not answer.
// Stage is one of "client", "generate" or "response".
type LLMCallError struct {
	Stage string
	Err   error
}

func (e *LLMCallError) Error() string { return e.Err.Error() }

func (e *LLMCallError) Unwrap() error { return e.Err }
