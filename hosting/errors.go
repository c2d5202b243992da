package hosting

import (
	"errors"
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-identity-gateway/core"
)

var (
	ErrRemoteNotFound    = errors.New("hosting: repository not found")
	ErrRemoteRateLimited = errors.New("hosting: rate limited by remote")
	ErrRemoteTransient   = errors.New("hosting: transient remote failure")
)

// NotFoundError means the remote repository does not exist or is not
// visible with the configured credentials.
type NotFoundError struct {
	FullName string
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return ErrRemoteNotFound.Error()
	}
	return fmt.Sprintf("hosting: repository %q not found", e.FullName)
}

func (e *NotFoundError) Unwrap() error { return ErrRemoteNotFound }

func (e *NotFoundError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(core.GatewayErrorRemoteNotFound)
}

// RateLimitedError means the remote refused the call because the
// client exhausted its quota. Callers must not retry inside the same
// operation.
type RateLimitedError struct {
	FullName string
	Status   int
}

func (e *RateLimitedError) Error() string {
	if e == nil {
		return ErrRemoteRateLimited.Error()
	}
	return fmt.Sprintf("hosting: rate limited fetching %q (status %d)", e.FullName, e.Status)
}

func (e *RateLimitedError) Unwrap() error { return ErrRemoteRateLimited }

func (e *RateLimitedError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.GatewayErrorRemoteRateLimited)
}

// TransientError covers transport failures, timeouts, and unexpected
// remote statuses.
type TransientError struct {
	FullName string
	Status   int
	Cause    error
}

func (e *TransientError) Error() string {
	if e == nil {
		return ErrRemoteTransient.Error()
	}
	if e.Cause != nil {
		return fmt.Sprintf("hosting: fetching %q: %v", e.FullName, e.Cause)
	}
	return fmt.Sprintf("hosting: fetching %q: unexpected status %d", e.FullName, e.Status)
}

func (e *TransientError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return ErrRemoteTransient
	}
	return errors.Join(ErrRemoteTransient, e.Cause)
}

func (e *TransientError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(core.GatewayErrorRemoteTransient)
}
