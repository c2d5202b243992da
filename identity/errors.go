package identity

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-identity-gateway/core"
)

var (
	ErrExchangeFailed    = errors.New("identity: provider code exchange failed")
	ErrProfileIncomplete = errors.New("identity: provider profile is incomplete")
)

// ExchangeError reports a failed code-for-token exchange: a non-2xx
// response or a 2xx body with no access token.
type ExchangeError struct {
	Provider string
	Cause    error
}

func (e *ExchangeError) Error() string {
	provider := ""
	if e != nil {
		provider = strings.TrimSpace(e.Provider)
	}
	msg := ErrExchangeFailed.Error()
	if provider != "" {
		msg = "identity: " + provider + " code exchange failed"
	}
	if e != nil && e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ExchangeError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return ErrExchangeFailed
	}
	return errors.Join(ErrExchangeFailed, e.Cause)
}

func (e *ExchangeError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.GatewayErrorExchangeFailed)
}

// ProfileError reports that no usable identifier or email could be
// produced, even after the variant's fallbacks ran.
type ProfileError struct {
	Provider string
	Cause    error
}

func (e *ProfileError) Error() string {
	provider := ""
	if e != nil {
		provider = strings.TrimSpace(e.Provider)
	}
	msg := ErrProfileIncomplete.Error()
	if provider != "" {
		msg = "identity: " + provider + " profile is incomplete"
	}
	if e != nil && e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProfileError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return ErrProfileIncomplete
	}
	return errors.Join(ErrProfileIncomplete, e.Cause)
}

func (e *ProfileError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.GatewayErrorProfileIncomplete)
}
