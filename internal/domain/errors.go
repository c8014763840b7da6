package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is lets sentinel DomainErrors match wrapped copies of themselves.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// WithCause returns a copy of the error wrapping an underlying cause, so
// callers can both errors.Is against the sentinel and inspect the cause.
func (e *DomainError) WithCause(err error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Err: err}
}

// Common domain error codes
const (
	ErrCodeModelUnavailable = "MODEL_UNAVAILABLE"
	ErrCodeExtraction       = "EXTRACTION_FAILED"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeTranslation      = "TRANSLATION_UNAVAILABLE"
	ErrCodeDanglingRef      = "DANGLING_REFERENCE"
	ErrCodeStore            = "STORE_UNAVAILABLE"
	ErrCodeNotFound         = "NOT_FOUND"
)

// Failure taxonomy. Per-chunk errors (extraction, oversized chunks) are
// recovered locally during ingestion; model-load and store errors are
// surfaced to the caller.
var (
	// ErrModelUnavailable means the embedding or scoring model could not be
	// loaded. Fatal at startup, non-retryable.
	ErrModelUnavailable = NewDomainError(ErrCodeModelUnavailable, "model unavailable")

	// ErrExtractionFailed means relation extraction for a single chunk
	// returned malformed output or timed out. The chunk contributes zero
	// triples and the batch continues.
	ErrExtractionFailed = NewDomainError(ErrCodeExtraction, "relation extraction failed")

	// ErrChunkTooLarge is a pre-flight rejection: the chunk exceeds the
	// extraction token ceiling and is never sent to the model.
	ErrChunkTooLarge = NewDomainError(ErrCodeValidation, "chunk exceeds extraction token ceiling")

	// ErrTranslationUnavailable means the translation model failed; the
	// retrieval pipeline proceeds with the original text and flags the
	// package language as uncertain.
	ErrTranslationUnavailable = NewDomainError(ErrCodeTranslation, "translation unavailable")

	// ErrDanglingReference means a relation insert referenced a nonexistent
	// entity id. This indicates an orchestration bug; fatal for that single
	// insert, not for the batch.
	ErrDanglingReference = NewDomainError(ErrCodeDanglingRef, "relation references nonexistent entity")

	// ErrStoreUnavailable means the vector index or graph store is
	// unreachable. Fatal for the current operation.
	ErrStoreUnavailable = NewDomainError(ErrCodeStore, "store unavailable")
)

// ErrValidation builds a validation error with a specific message.
func ErrValidation(message string) *DomainError {
	return NewDomainError(ErrCodeValidation, message)
}

// Not found errors
var (
	ErrDocumentNotFound     = NewDomainError(ErrCodeNotFound, "document not found")
	ErrEntityNotFound       = NewDomainError(ErrCodeNotFound, "entity not found")
	ErrIngestionJobNotFound = NewDomainError(ErrCodeNotFound, "ingestion job not found")
)
