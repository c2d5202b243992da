package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	GatewayErrorBadInput            = "GATEWAY_BAD_INPUT"
	GatewayErrorUnsupportedProvider = "GATEWAY_UNSUPPORTED_PROVIDER"
	GatewayErrorMissingCredential   = "GATEWAY_MISSING_CREDENTIAL"
	GatewayErrorExchangeFailed      = "GATEWAY_PROVIDER_EXCHANGE_FAILED"
	GatewayErrorProfileIncomplete   = "GATEWAY_PROVIDER_PROFILE_INCOMPLETE"
	GatewayErrorTokenInvalid        = "GATEWAY_TOKEN_INVALID"
	GatewayErrorTokenExpired        = "GATEWAY_TOKEN_EXPIRED"
	GatewayErrorTokenTypeMismatch   = "GATEWAY_TOKEN_TYPE_MISMATCH"
	GatewayErrorAuthRequired        = "GATEWAY_AUTHENTICATION_REQUIRED"
	GatewayErrorInvalidCredentials  = "GATEWAY_INVALID_CREDENTIALS"
	GatewayErrorDuplicateLink       = "GATEWAY_DUPLICATE_LINK"
	GatewayErrorLinkNotFound        = "GATEWAY_LINK_NOT_FOUND"
	GatewayErrorInvalidRepoURL      = "GATEWAY_INVALID_REPOSITORY_URL"
	GatewayErrorRemoteNotFound      = "GATEWAY_REMOTE_NOT_FOUND"
	GatewayErrorRemoteRateLimited   = "GATEWAY_REMOTE_RATE_LIMITED"
	GatewayErrorRemoteTransient     = "GATEWAY_REMOTE_TRANSIENT_FAILURE"
	GatewayErrorPermissionDenied    = "GATEWAY_PERMISSION_DENIED"
	GatewayErrorInternal            = "GATEWAY_INTERNAL_ERROR"
)

// ServiceError converter implemented by the domain error types spread
// across the gateway packages (token, identity, hosting, ...).
type ServiceErrorConverter interface {
	ToServiceError() *goerrors.Error
}

// MapError folds any error into a categorized goerrors envelope with a
// gateway text code and HTTP status.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	if converter, ok := err.(ServiceErrorConverter); ok {
		return ensureGatewayErrorEnvelope(converter.ToServiceError())
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureGatewayErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "unsupported") && strings.Contains(msg, "provider"):
		return NewGatewayError(err.Error(), goerrors.CategoryBadInput, GatewayErrorUnsupportedProvider)
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "throttl"):
		return NewGatewayError(err.Error(), goerrors.CategoryRateLimit, GatewayErrorRemoteRateLimited)
	case strings.Contains(msg, "not found"):
		return NewGatewayError(err.Error(), goerrors.CategoryNotFound, GatewayErrorLinkNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return NewGatewayError(err.Error(), goerrors.CategoryBadInput, GatewayErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureGatewayErrorEnvelope(mapped)
}

func NewGatewayError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureGatewayErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureGatewayErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = gatewayHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultGatewayTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultGatewayTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return GatewayErrorBadInput
	case goerrors.CategoryNotFound:
		return GatewayErrorLinkNotFound
	case goerrors.CategoryAuth:
		return GatewayErrorAuthRequired
	case goerrors.CategoryAuthz:
		return GatewayErrorPermissionDenied
	case goerrors.CategoryConflict:
		return GatewayErrorDuplicateLink
	case goerrors.CategoryRateLimit:
		return GatewayErrorRemoteRateLimited
	case goerrors.CategoryExternal:
		return GatewayErrorRemoteTransient
	default:
		return GatewayErrorInternal
	}
}

func gatewayHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
