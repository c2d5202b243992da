package token

import (
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-identity-gateway/core"
)

func testCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(core.TokenConfig{
		Secret:     "test-secret",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return codec
}

func TestCodec_IssueAndVerifyRoundTrip(t *testing.T) {
	codec := testCodec(t)

	issued, err := codec.Issue("user_1", TypeAccess, time.Minute)
	if err != nil {
		t.Fatalf("issue access token: %v", err)
	}
	subject, err := codec.Verify(issued, TypeAccess)
	if err != nil {
		t.Fatalf("verify access token: %v", err)
	}
	if subject != "user_1" {
		t.Fatalf("expected subject user_1, got %q", subject)
	}
}

func TestCodec_VerifyRejectsTypeMismatch(t *testing.T) {
	codec := testCodec(t)

	issued, err := codec.Issue("user_1", TypeAccess, time.Minute)
	if err != nil {
		t.Fatalf("issue access token: %v", err)
	}
	if _, err := codec.Verify(issued, TypeRefresh); !errors.Is(err, ErrTokenTypeMismatch) {
		t.Fatalf("expected ErrTokenTypeMismatch, got %v", err)
	}
}

func TestCodec_VerifyRejectsExpiredToken(t *testing.T) {
	codec := testCodec(t)

	issued, err := codec.Issue("user_1", TypeAccess, -time.Second)
	if err != nil {
		t.Fatalf("issue expired token: %v", err)
	}
	if _, err := codec.Verify(issued, TypeAccess); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestCodec_VerifyRejectsForeignSignature(t *testing.T) {
	codec := testCodec(t)
	other, err := NewCodec(core.TokenConfig{Secret: "other-secret"})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	issued, err := other.Issue("user_1", TypeAccess, time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := codec.Verify(issued, TypeAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestCodec_VerifyRejectsMalformedToken(t *testing.T) {
	codec := testCodec(t)
	if _, err := codec.Verify("not.a.token", TypeAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if _, err := codec.Verify("", TypeAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for empty token, got %v", err)
	}
}

func TestCodec_IssueRequiresSubject(t *testing.T) {
	codec := testCodec(t)
	if _, err := codec.Issue("  ", TypeAccess, time.Minute); err == nil {
		t.Fatalf("expected error for empty subject")
	}
	if _, err := codec.Issue("user_1", Type("session"), time.Minute); err == nil {
		t.Fatalf("expected error for unsupported token type")
	}
}

func TestCodec_ZeroTTLUsesConfiguredDefault(t *testing.T) {
	codec := testCodec(t)

	issued, err := codec.Issue("user_1", TypeRefresh, 0)
	if err != nil {
		t.Fatalf("issue refresh token: %v", err)
	}
	if _, err := codec.Verify(issued, TypeRefresh); err != nil {
		t.Fatalf("verify refresh token with default ttl: %v", err)
	}
}

func TestFingerprint_TruncatesLongTokens(t *testing.T) {
	codec := testCodec(t)
	issued, err := codec.Issue("user_1", TypeAccess, time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	fp := Fingerprint(issued)
	if len(fp) != 32 {
		t.Fatalf("expected 32-char fingerprint, got %d chars", len(fp))
	}
	if Fingerprint("short") != "short" {
		t.Fatalf("expected short values to pass through unchanged")
	}
}
