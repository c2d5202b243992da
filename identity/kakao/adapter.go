// Package kakao authenticates users through the Kakao OAuth flow.
// Email is an optional consent item there: when the user withholds it
// the adapter synthesizes a deterministic placeholder address so
// account creation can still proceed.
package kakao

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-identity-gateway/core"
	"github.com/goliatone/go-identity-gateway/identity"
)

const (
	defaultTokenURL   = "https://kauth.kakao.com/oauth/token"
	defaultProfileURL = "https://kapi.kakao.com/v2/user/me"
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	TokenURL     string
	ProfileURL   string
	HTTPClient   identity.HTTPDoer
}

type Adapter struct {
	cfg        Config
	httpClient identity.HTTPDoer
}

func New(cfg Config) (*Adapter, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("kakao: client id is required")
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if strings.TrimSpace(cfg.ProfileURL) == "" {
		cfg.ProfileURL = defaultProfileURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = identity.DefaultHTTPClient(0)
	}
	return &Adapter{cfg: cfg, httpClient: httpClient}, nil
}

func FromProviderConfig(cfg core.ProviderConfig) (*Adapter, error) {
	return New(Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		TokenURL:     cfg.TokenURL,
		ProfileURL:   cfg.ProfileURL,
	})
}

func (*Adapter) Provider() string {
	return core.ProviderKakao
}

func (a *Adapter) ExchangeCode(ctx context.Context, code string) (identity.ProviderToken, error) {
	if a == nil {
		return identity.ProviderToken{}, fmt.Errorf("kakao: adapter is nil")
	}
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", a.cfg.ClientID)
	if secret := strings.TrimSpace(a.cfg.ClientSecret); secret != "" {
		form.Set("client_secret", secret)
	}
	if redirectURI := strings.TrimSpace(a.cfg.RedirectURI); redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}
	form.Set("code", strings.TrimSpace(code))

	return identity.ExchangeCode(ctx, a.httpClient, core.ProviderKakao, identity.ExchangeRequest{
		TokenURL: a.cfg.TokenURL,
		Form:     form,
	})
}

type profilePayload struct {
	ID      json.Number `json:"id"`
	Account struct {
		Email   string `json:"email"`
		Profile struct {
			Nickname        string `json:"nickname"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"profile"`
	} `json:"kakao_account"`
}

func (a *Adapter) FetchProfile(ctx context.Context, token identity.ProviderToken) (identity.Profile, error) {
	if a == nil {
		return identity.Profile{}, fmt.Errorf("kakao: adapter is nil")
	}
	headers := map[string]string{
		"Authorization": "Bearer " + strings.TrimSpace(token.AccessToken),
	}

	payload := profilePayload{}
	status, err := identity.GetJSON(ctx, a.httpClient, a.cfg.ProfileURL, headers, &payload)
	if err != nil {
		return identity.Profile{}, &identity.ProfileError{Provider: core.ProviderKakao, Cause: err}
	}
	if status != http.StatusOK {
		return identity.Profile{}, &identity.ProfileError{
			Provider: core.ProviderKakao,
			Cause:    fmt.Errorf("profile endpoint returned status %d", status),
		}
	}

	userID := strings.TrimSpace(payload.ID.String())
	if userID == "" || userID == "0" {
		return identity.Profile{}, &identity.ProfileError{
			Provider: core.ProviderKakao,
			Cause:    fmt.Errorf("profile has no account id"),
		}
	}

	// Withheld email consent synthesizes a deterministic local address
	// instead of failing the login.
	email := strings.TrimSpace(payload.Account.Email)
	if email == "" {
		email = fmt.Sprintf("kakao_%s@kakao.local", userID)
	}

	name := strings.TrimSpace(payload.Account.Profile.Nickname)
	if name == "" {
		name = identity.LocalPart(email)
	}

	return identity.Profile{
		ProviderUserID: userID,
		Email:          email,
		Name:           name,
		AvatarURL:      strings.TrimSpace(payload.Account.Profile.ProfileImageURL),
	}, nil
}

var _ identity.Adapter = (*Adapter)(nil)
