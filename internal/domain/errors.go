package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrMissingCredential = errors.New("missing credential")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstream          = errors.New("upstream failure")
	ErrTimeout           = errors.New("upstream timeout")
)

// Classify names the taxonomy bucket of err for logs and metrics.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "upstream_failure"
	}
}
