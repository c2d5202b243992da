package auth

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-identity-gateway/core"
)

var (
	ErrUnsupportedProvider    = errors.New("auth: unsupported identity provider")
	ErrMissingCredential      = errors.New("auth: credential is required")
	ErrAuthenticationRequired = errors.New("auth: authentication required")
	ErrInvalidCredentials     = errors.New("auth: invalid credentials")
)

// Error wraps one of the auth sentinels with request detail and carries
// it to the HTTP boundary as a categorized envelope.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	if e == nil || e.Kind == nil {
		return ErrAuthenticationRequired.Error()
	}
	if detail := strings.TrimSpace(e.Detail); detail != "" {
		return e.Kind.Error() + ": " + detail
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Kind
}

func (e *Error) ToServiceError() *goerrors.Error {
	category := goerrors.CategoryAuth
	status := http.StatusUnauthorized
	textCode := core.GatewayErrorAuthRequired
	if e != nil {
		switch {
		case errors.Is(e.Kind, ErrUnsupportedProvider):
			category = goerrors.CategoryBadInput
			status = http.StatusBadRequest
			textCode = core.GatewayErrorUnsupportedProvider
		case errors.Is(e.Kind, ErrMissingCredential):
			category = goerrors.CategoryBadInput
			status = http.StatusBadRequest
			textCode = core.GatewayErrorMissingCredential
		case errors.Is(e.Kind, ErrInvalidCredentials):
			textCode = core.GatewayErrorInvalidCredentials
		}
	}
	return goerrors.New(e.Error(), category).
		WithCode(status).
		WithTextCode(textCode)
}

func authError(kind error, detail string) error {
	return &Error{Kind: kind, Detail: detail}
}
