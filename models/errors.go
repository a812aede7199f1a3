package models

import (
	"errors"
	"fmt"
)

var (
	ErrExtractionFailure = errors.New("extraction failure")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrEstimationMiss    = errors.New("no retail estimate")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrInvalidThresholds = errors.New("great-deal thresholds must not be below good-deal thresholds")
)

// SourceError marks a whole source as failed for one search.
type SourceError struct {
	Source Source
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, ErrSourceUnavailable, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Err}
}
