// Package token signs and verifies the compact bearer tokens the
// gateway hands to clients. The codec holds only read-only
// configuration and is safe for unlimited concurrent callers.
package token

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/goliatone/go-identity-gateway/core"
)

type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

var (
	ErrTokenInvalid      = errors.New("token: token is invalid")
	ErrTokenExpired      = errors.New("token: token is expired")
	ErrTokenTypeMismatch = errors.New("token: token type mismatch")
)

type VerificationError struct {
	Kind  error
	Cause error
}

func (e *VerificationError) Error() string {
	if e == nil || e.Kind == nil {
		return ErrTokenInvalid.Error()
	}
	if e.Cause == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Cause.Error()
}

func (e *VerificationError) Unwrap() error {
	if e == nil {
		return nil
	}
	if e.Cause == nil {
		return e.Kind
	}
	return errors.Join(e.Kind, e.Cause)
}

func (e *VerificationError) ToServiceError() *goerrors.Error {
	textCode := core.GatewayErrorTokenInvalid
	if e != nil {
		switch {
		case errors.Is(e.Kind, ErrTokenExpired):
			textCode = core.GatewayErrorTokenExpired
		case errors.Is(e.Kind, ErrTokenTypeMismatch):
			textCode = core.GatewayErrorTokenTypeMismatch
		}
	}
	return goerrors.New(e.Error(), goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(textCode)
}

func verificationFailed(kind error, cause error) error {
	return &VerificationError{Kind: kind, Cause: cause}
}

type claims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Codec issues and verifies HS256-signed tokens embedding
// {sub, exp, typ}. TTLs come from configuration, not process state.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewCodec(cfg core.TokenConfig) (*Codec, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, fmt.Errorf("token: signing secret is required")
	}
	if algorithm := strings.TrimSpace(cfg.Algorithm); algorithm != "" && !strings.EqualFold(algorithm, "HS256") {
		return nil, fmt.Errorf("token: unsupported signing algorithm %q", algorithm)
	}
	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = core.DefaultAccessTokenTTL
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = core.DefaultRefreshTokenTTL
	}
	return &Codec{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// WithNow overrides the codec clock. Tests use it to mint tokens at
// fixed instants.
func (c *Codec) WithNow(now func() time.Time) *Codec {
	if c != nil && now != nil {
		c.now = now
	}
	return c
}

func (c *Codec) AccessTTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.accessTTL
}

func (c *Codec) RefreshTTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.refreshTTL
}

// Issue signs a token for the subject. A non-positive ttl falls back to
// the configured default for the token type.
func (c *Codec) Issue(subjectID string, tokenType Type, ttl time.Duration) (string, error) {
	if c == nil {
		return "", fmt.Errorf("token: codec is nil")
	}
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return "", fmt.Errorf("token: subject id is required")
	}
	switch tokenType {
	case TypeAccess, TypeRefresh:
	default:
		return "", fmt.Errorf("token: unsupported token type %q", tokenType)
	}
	if ttl == 0 {
		ttl = c.defaultTTL(tokenType)
	}

	now := c.now()
	issued := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		TokenType: string(tokenType),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := issued.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry, and type, returning the subject id.
func (c *Codec) Verify(tokenString string, expectedType Type) (string, error) {
	if c == nil {
		return "", verificationFailed(ErrTokenInvalid, fmt.Errorf("codec is nil"))
	}
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return "", verificationFailed(ErrTokenInvalid, fmt.Errorf("token is empty"))
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(parsed *jwt.Token) (any, error) {
		if _, ok := parsed.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", parsed.Method.Alg())
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", verificationFailed(ErrTokenExpired, err)
		}
		return "", verificationFailed(ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return "", verificationFailed(ErrTokenInvalid, nil)
	}

	decoded, ok := parsed.Claims.(*claims)
	if !ok {
		return "", verificationFailed(ErrTokenInvalid, nil)
	}
	if decoded.TokenType != string(expectedType) {
		return "", verificationFailed(
			ErrTokenTypeMismatch,
			fmt.Errorf("expected %q, got %q", expectedType, decoded.TokenType),
		)
	}
	subject := strings.TrimSpace(decoded.Subject)
	if subject == "" {
		return "", verificationFailed(ErrTokenInvalid, fmt.Errorf("token is missing subject"))
	}
	return subject, nil
}

// Fingerprint derives the stored session handle from a signed token.
// Only this prefix is persisted, never the full token.
func Fingerprint(tokenString string) string {
	trimmed := strings.TrimSpace(tokenString)
	if len(trimmed) <= 32 {
		return trimmed
	}
	return trimmed[:32]
}

func (c *Codec) defaultTTL(tokenType Type) time.Duration {
	if tokenType == TypeRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}
