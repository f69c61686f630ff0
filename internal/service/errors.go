package service

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateJob is returned when a video already has an active queue entry.
	ErrDuplicateJob = errors.New("duplicate job")
	// ErrJobActive is returned when a mutation is blocked by in-flight work.
	ErrJobActive = errors.New("job active")
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrVectorStoreUnavailable is returned when the vector database
	// cannot be reached or rejects a request.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")
)

// StageErrorKind classifies stage worker failures.
type StageErrorKind string

const (
	// FetchError covers network/auth/unavailable-video download failures.
	FetchError StageErrorKind = "fetch_error"
	// DecodeError covers unreadable media during transcription.
	DecodeError StageErrorKind = "decode_error"
	// ModelError covers speech-to-text model failures.
	ModelError StageErrorKind = "model_error"
	// EmbeddingError covers embedding generation failures.
	EmbeddingError StageErrorKind = "embedding_error"
)

// StageError is a classified failure reported by a stage worker.
type StageError struct {
	Kind StageErrorKind
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with a stage failure classification.
func NewStageError(kind StageErrorKind, err error) *StageError {
	return &StageError{Kind: kind, Err: err}
}

// StageErrorOf extracts a StageError from err's chain, or returns nil.
func StageErrorOf(err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
