package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest signals a malformed caller request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidDocument signals a document that fails validation.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrCollectionUnavailable signals a vector collection that is missing or failing.
	ErrCollectionUnavailable = errors.New("collection unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrIngestionFailed signals that the literature source could not be reached or parsed.
	ErrIngestionFailed = errors.New("ingestion failed")
	// ErrNothingFetched signals that the literature source returned no records.
	ErrNothingFetched = errors.New("nothing fetched")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)

// CollectionError ties a failure to the collection that produced it.
type CollectionError struct {
	Collection string
	Err        error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collection %q: %v", e.Collection, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// NewCollectionError wraps err with the collection name.
func NewCollectionError(collection string, err error) error {
	return &CollectionError{Collection: collection, Err: err}
}
