package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/api/googleapi"
)

// Kind classifies why the search provider could not be used.
type Kind string

const (
	KindUnavailable Kind = "unavailable"
	KindRateLimited Kind = "rate_limited"
	KindCircuitOpen Kind = "circuit_open"
	KindTimeout     Kind = "timeout"
	KindMalformed   Kind = "malformed"
)

// UpstreamError wraps any failure of the search provider.
type UpstreamError struct {
	Kind Kind
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("search upstream %s: %v", e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// classify maps a raw provider error to an UpstreamError.
func classify(err error) *UpstreamError {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &UpstreamError{Kind: KindTimeout, Err: err}
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &UpstreamError{Kind: KindCircuitOpen, Err: err}
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return &UpstreamError{Kind: KindRateLimited, Err: err}
	}
	return &UpstreamError{Kind: KindUnavailable, Err: err}
}
