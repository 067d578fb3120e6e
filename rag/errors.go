package rag

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmbeddingUnavailable is returned when the embedding model cannot be
	// reached or does not answer within the call timeout.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrStoreUnavailable is returned when the vector store cannot be reached,
	// is corrupted, or does not answer within the call timeout.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	ErrInvalidInput   = errors.New("invalid input")
	ErrEmptyDocument  = errors.New("document has no text")
	ErrSourceNotFound = errors.New("source not found")
)

// IngestionFailedError reports that a source could not be indexed. Stage is
// the last state the ingestion reached before it failed.
type IngestionFailedError struct {
	SourceID string
	Stage    IngestionState
	Cause    error
}

func (e *IngestionFailedError) Error() string {
	return fmt.Sprintf("ingestion of %q failed after %s: %v", e.SourceID, e.Stage, e.Cause)
}

func (e *IngestionFailedError) Unwrap() error { return e.Cause }

// RetrievalFailedError reports that a query could not be embedded or searched.
type RetrievalFailedError struct {
	Cause error
}

func (e *RetrievalFailedError) Error() string {
	return fmt.Sprintf("retrieval failed: %v", e.Cause)
}

func (e *RetrievalFailedError) Unwrap() error { return e.Cause }

// classify makes sure err matches sentinel. Deadline and cancellation errors
// keep their identity so callers can still tell a timeout apart.
func classify(err, sentinel error) error {
	if err == nil || errors.Is(err, sentinel) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timed out: %w", sentinel, err)
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
