package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexUnavailable signals a transport failure reaching a scorer's backing index.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrDimensionMismatch signals a query embedding whose dimensionality differs from the index.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrPartialSourceFailure signals that exactly one of the two scorers failed.
	ErrPartialSourceFailure = errors.New("partial source failure")
	// ErrBothSourcesFailed signals that both scorers failed; fatal for the request.
	ErrBothSourcesFailed = errors.New("both sources failed")
	// ErrInvalidOptions signals malformed search options, rejected before any I/O.
	ErrInvalidOptions = errors.New("invalid search options")

	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// SourceFailureError wraps ErrPartialSourceFailure with the name of the failed source.
type SourceFailureError struct {
	Source string
	Err    error
}

func (e *SourceFailureError) Error() string {
	return fmt.Sprintf("%s: source %s: %v", ErrPartialSourceFailure.Error(), e.Source, e.Err)
}

func (e *SourceFailureError) Unwrap() error { return ErrPartialSourceFailure }

// NewSourceFailure creates a partial failure error for a single source.
func NewSourceFailure(source string, err error) error {
	return &SourceFailureError{Source: source, Err: err}
}

// DimensionMismatchError wraps ErrDimensionMismatch with the offending sizes.
type DimensionMismatchError struct {
	Got  int
	Want int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: got %d, want %d", ErrDimensionMismatch.Error(), e.Got, e.Want)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionMismatch creates a dimension mismatch error.
func NewDimensionMismatch(got, want int) error {
	return &DimensionMismatchError{Got: got, Want: want}
}
