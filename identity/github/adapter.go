// Package github authenticates users against the GitHub OAuth flow.
// The profile endpoint does not reliably expose an email, so the
// adapter consults the secondary email listing and falls back to the
// public profile email when that listing is denied.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-identity-gateway/core"
	"github.com/goliatone/go-identity-gateway/identity"
)

const (
	defaultTokenURL   = "https://github.com/login/oauth/access_token"
	defaultProfileURL = "https://api.github.com/user"
	defaultEmailURL   = "https://api.github.com/user/emails"
	acceptHeader      = "application/vnd.github.v3+json"
)

type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	ProfileURL   string
	EmailURL     string
	UserAgent    string
	HTTPClient   identity.HTTPDoer
}

type Adapter struct {
	cfg        Config
	httpClient identity.HTTPDoer
}

func New(cfg Config) (*Adapter, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("github: client id is required")
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("github: client secret is required")
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if strings.TrimSpace(cfg.ProfileURL) == "" {
		cfg.ProfileURL = defaultProfileURL
	}
	if strings.TrimSpace(cfg.EmailURL) == "" {
		cfg.EmailURL = defaultEmailURL
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = "identity-gateway/1.0"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = identity.DefaultHTTPClient(0)
	}
	return &Adapter{cfg: cfg, httpClient: httpClient}, nil
}

// FromProviderConfig builds the adapter from gateway configuration,
// applying endpoint overrides when present.
func FromProviderConfig(cfg core.ProviderConfig) (*Adapter, error) {
	return New(Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		ProfileURL:   cfg.ProfileURL,
		EmailURL:     cfg.EmailURL,
	})
}

func (*Adapter) Provider() string {
	return core.ProviderGitHub
}

func (a *Adapter) ExchangeCode(ctx context.Context, code string) (identity.ProviderToken, error) {
	if a == nil {
		return identity.ProviderToken{}, fmt.Errorf("github: adapter is nil")
	}
	form := url.Values{}
	form.Set("client_id", a.cfg.ClientID)
	form.Set("client_secret", a.cfg.ClientSecret)
	form.Set("code", strings.TrimSpace(code))
	form.Set("scope", "user:email")

	return identity.ExchangeCode(ctx, a.httpClient, core.ProviderGitHub, identity.ExchangeRequest{
		TokenURL: a.cfg.TokenURL,
		Form:     form,
		Headers:  map[string]string{"User-Agent": a.cfg.UserAgent},
	})
}

type profilePayload struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type emailPayload struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (a *Adapter) FetchProfile(ctx context.Context, token identity.ProviderToken) (identity.Profile, error) {
	if a == nil {
		return identity.Profile{}, fmt.Errorf("github: adapter is nil")
	}
	headers := a.apiHeaders(token)

	profile := profilePayload{}
	status, err := identity.GetJSON(ctx, a.httpClient, a.cfg.ProfileURL, headers, &profile)
	if err != nil {
		return identity.Profile{}, &identity.ProfileError{Provider: core.ProviderGitHub, Cause: err}
	}
	if status != http.StatusOK {
		return identity.Profile{}, &identity.ProfileError{
			Provider: core.ProviderGitHub,
			Cause:    fmt.Errorf("profile endpoint returned status %d", status),
		}
	}
	if profile.ID == 0 {
		return identity.Profile{}, &identity.ProfileError{
			Provider: core.ProviderGitHub,
			Cause:    fmt.Errorf("profile has no account id"),
		}
	}

	email, err := a.resolveEmail(ctx, headers, profile.Email)
	if err != nil {
		return identity.Profile{}, err
	}

	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = strings.TrimSpace(profile.Login)
	}

	return identity.Profile{
		ProviderUserID: strconv.FormatInt(profile.ID, 10),
		Email:          email,
		Name:           name,
		AvatarURL:      strings.TrimSpace(profile.AvatarURL),
		Username:       strings.TrimSpace(profile.Login),
	}, nil
}

// resolveEmail prefers primary+verified over verified over first listed
// over the public profile email. Denied email access degrades to the
// public email instead of failing outright.
func (a *Adapter) resolveEmail(ctx context.Context, headers map[string]string, publicEmail string) (string, error) {
	publicEmail = strings.TrimSpace(publicEmail)

	emails := []emailPayload{}
	status, err := identity.GetJSON(ctx, a.httpClient, a.cfg.EmailURL, headers, &emails)
	if err != nil || status != http.StatusOK {
		if publicEmail != "" {
			return publicEmail, nil
		}
		cause := err
		if cause == nil {
			cause = fmt.Errorf("email endpoint returned status %d and profile has no public email", status)
		}
		return "", &identity.ProfileError{Provider: core.ProviderGitHub, Cause: cause}
	}

	verified := ""
	for _, entry := range emails {
		email := strings.TrimSpace(entry.Email)
		if email == "" {
			continue
		}
		if entry.Primary && entry.Verified {
			return email, nil
		}
		if entry.Verified && verified == "" {
			verified = email
		}
	}
	if verified != "" {
		return verified, nil
	}
	for _, entry := range emails {
		if email := strings.TrimSpace(entry.Email); email != "" {
			return email, nil
		}
	}
	if publicEmail != "" {
		return publicEmail, nil
	}
	return "", &identity.ProfileError{
		Provider: core.ProviderGitHub,
		Cause:    fmt.Errorf("no usable email on the account"),
	}
}

func (a *Adapter) apiHeaders(token identity.ProviderToken) map[string]string {
	tokenType := strings.TrimSpace(token.TokenType)
	if tokenType == "" {
		tokenType = "token"
	}
	return map[string]string{
		"Authorization": tokenType + " " + strings.TrimSpace(token.AccessToken),
		"Accept":        acceptHeader,
		"User-Agent":    a.cfg.UserAgent,
	}
}

var _ identity.Adapter = (*Adapter)(nil)
