package kakao

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/go-identity-gateway/identity"
)

func newFixtureAdapter(t *testing.T, profileBody map[string]any) (*Adapter, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "k_token"})
		case "/v2/user/me":
			_ = json.NewEncoder(w).Encode(profileBody)
		default:
			http.NotFound(w, r)
		}
	}))
	adapter, err := New(Config{
		ClientID:   "client_1",
		TokenURL:   server.URL + "/oauth/token",
		ProfileURL: server.URL + "/v2/user/me",
	})
	if err != nil {
		server.Close()
		t.Fatalf("new kakao adapter: %v", err)
	}
	return adapter, server
}

func TestAdapter_FetchProfileWithConsentedEmail(t *testing.T) {
	adapter, server := newFixtureAdapter(t, map[string]any{
		"id": 99001,
		"kakao_account": map[string]any{
			"email": "user@example.com",
			"profile": map[string]any{
				"nickname":          "nick",
				"profile_image_url": "https://example.com/p.png",
			},
		},
	})
	defer server.Close()

	profile, err := adapter.FetchProfile(context.Background(), identity.ProviderToken{AccessToken: "k_token"})
	if err != nil {
		t.Fatalf("fetch profile: %v", err)
	}
	if profile.ProviderUserID != "99001" {
		t.Fatalf("expected provider user id 99001, got %q", profile.ProviderUserID)
	}
	if profile.Email != "user@example.com" {
		t.Fatalf("expected consented email, got %q", profile.Email)
	}
	if profile.Name != "nick" {
		t.Fatalf("expected nickname, got %q", profile.Name)
	}
}

func TestAdapter_FetchProfileSynthesizesPlaceholderEmail(t *testing.T) {
	adapter, server := newFixtureAdapter(t, map[string]any{
		"id":            99001,
		"kakao_account": map[string]any{},
	})
	defer server.Close()

	profile, err := adapter.FetchProfile(context.Background(), identity.ProviderToken{AccessToken: "k_token"})
	if err != nil {
		t.Fatalf("fetch profile without email consent: %v", err)
	}
	if profile.Email != "kakao_99001@kakao.local" {
		t.Fatalf("expected placeholder email, got %q", profile.Email)
	}
	if profile.Name != "kakao_99001" {
		t.Fatalf("expected local part as name fallback, got %q", profile.Name)
	}
}

func TestAdapter_FetchProfileRequiresAccountID(t *testing.T) {
	adapter, server := newFixtureAdapter(t, map[string]any{
		"kakao_account": map[string]any{"email": "user@example.com"},
	})
	defer server.Close()

	_, err := adapter.FetchProfile(context.Background(), identity.ProviderToken{AccessToken: "k_token"})
	if !errors.Is(err, identity.ErrProfileIncomplete) {
		t.Fatalf("expected ErrProfileIncomplete, got %v", err)
	}
}

func TestAdapter_ExchangeCodeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid_grant"})
	}))
	defer server.Close()

	adapter, err := New(Config{ClientID: "client_1", TokenURL: server.URL})
	if err != nil {
		t.Fatalf("new kakao adapter: %v", err)
	}
	if _, err := adapter.ExchangeCode(context.Background(), "code_1"); !errors.Is(err, identity.ErrExchangeFailed) {
		t.Fatalf("expected ErrExchangeFailed, got %v", err)
	}
}
