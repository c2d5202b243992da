package repolink

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-identity-gateway/core"
)

var (
	ErrDuplicateLink        = errors.New("repolink: repository already linked")
	ErrLinkNotFound         = errors.New("repolink: link not found")
	ErrInvalidRepositoryURL = errors.New("repolink: invalid repository url")
)

// Error wraps one of the repolink sentinels with the offending value.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	if e == nil || e.Kind == nil {
		return ErrLinkNotFound.Error()
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
	category := goerrors.CategoryNotFound
	status := http.StatusNotFound
	textCode := core.GatewayErrorLinkNotFound
	if e != nil {
		switch {
		case errors.Is(e.Kind, ErrDuplicateLink):
			category = goerrors.CategoryConflict
			status = http.StatusConflict
			textCode = core.GatewayErrorDuplicateLink
		case errors.Is(e.Kind, ErrInvalidRepositoryURL):
			category = goerrors.CategoryBadInput
			status = http.StatusBadRequest
			textCode = core.GatewayErrorInvalidRepoURL
		}
	}
	return goerrors.New(e.Error(), category).
		WithCode(status).
		WithTextCode(textCode)
}

func linkError(kind error, detail string) error {
	return &Error{Kind: kind, Detail: detail}
}
