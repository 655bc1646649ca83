package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTicketNotFound signals that the tracker has no such ticket.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrAuthFailure signals rejected or missing tracker credentials.
	ErrAuthFailure = errors.New("tracker authentication failed")
	// ErrTrackerUnavailable signals a tracker transport failure or timeout.
	ErrTrackerUnavailable = errors.New("tracker unavailable")

	// ErrGenerationTimeout signals that the model service did not answer in time.
	ErrGenerationTimeout = errors.New("generation timed out")
	// ErrModelUnavailable signals that the model service rejected the request
	// or could not be reached.
	ErrModelUnavailable = errors.New("model service unavailable")
	// ErrGenerationMalformed signals unusable model output after retry exhaustion.
	ErrGenerationMalformed = errors.New("malformed generation output")

	// ErrRecordNotFound signals a missing stored record.
	ErrRecordNotFound = errors.New("record not found")
	// ErrStoreUnavailable signals a vector index connection failure.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")

	// ErrInvalidRequest signals a malformed client request.
	ErrInvalidRequest = errors.New("invalid request")
)

// GenerationError wraps ErrGenerationMalformed with the raw model output
// that failed to parse or validate, kept for diagnostics.
type GenerationError struct {
	Raw    string
	Reason error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", ErrGenerationMalformed.Error(), e.Reason)
}

func (e *GenerationError) Unwrap() error { return ErrGenerationMalformed }

// NewGenerationError creates a generation error carrying the offending output.
func NewGenerationError(raw string, reason error) error {
	return &GenerationError{Raw: raw, Reason: reason}
}
