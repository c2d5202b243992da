// Package google authenticates users through Google's OAuth flow. The
// People API is the primary profile source; when it answers with a
// forbidden or otherwise non-OK status the adapter degrades to the
// lower-fidelity userinfo v2 endpoint.
package google

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-identity-gateway/core"
	"github.com/goliatone/go-identity-gateway/identity"
)

const (
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultProfileURL  = "https://people.googleapis.com/v1/people/me"
	defaultFallbackURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	personFields       = "names,emailAddresses,photos"
	resourcePrefix     = "people/"
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	TokenURL     string
	ProfileURL   string
	FallbackURL  string
	HTTPClient   identity.HTTPDoer
}

type Adapter struct {
	cfg        Config
	httpClient identity.HTTPDoer
}

func New(cfg Config) (*Adapter, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("google: client id is required")
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("google: client secret is required")
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if strings.TrimSpace(cfg.ProfileURL) == "" {
		cfg.ProfileURL = defaultProfileURL
	}
	if strings.TrimSpace(cfg.FallbackURL) == "" {
		cfg.FallbackURL = defaultFallbackURL
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
		FallbackURL:  cfg.FallbackURL,
	})
}

func (*Adapter) Provider() string {
	return core.ProviderGoogle
}

func (a *Adapter) ExchangeCode(ctx context.Context, code string) (identity.ProviderToken, error) {
	if a == nil {
		return identity.ProviderToken{}, fmt.Errorf("google: adapter is nil")
	}
	form := url.Values{}
	form.Set("client_id", a.cfg.ClientID)
	form.Set("client_secret", a.cfg.ClientSecret)
	form.Set("code", strings.TrimSpace(code))
	form.Set("grant_type", "authorization_code")
	if redirectURI := strings.TrimSpace(a.cfg.RedirectURI); redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}

	return identity.ExchangeCode(ctx, a.httpClient, core.ProviderGoogle, identity.ExchangeRequest{
		TokenURL: a.cfg.TokenURL,
		Form:     form,
	})
}

type peopleMetadata struct {
	Primary bool `json:"primary"`
}

type personName struct {
	Metadata    peopleMetadata `json:"metadata"`
	DisplayName string         `json:"displayName"`
	GivenName   string         `json:"givenName"`
	FamilyName  string         `json:"familyName"`
}

type personEmail struct {
	Metadata peopleMetadata `json:"metadata"`
	Value    string         `json:"value"`
}

type personPhoto struct {
	Metadata peopleMetadata `json:"metadata"`
	URL      string         `json:"url"`
}

type peoplePayload struct {
	ResourceName   string        `json:"resourceName"`
	Names          []personName  `json:"names"`
	EmailAddresses []personEmail `json:"emailAddresses"`
	Photos         []personPhoto `json:"photos"`
}

type userinfoPayload struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (a *Adapter) FetchProfile(ctx context.Context, token identity.ProviderToken) (identity.Profile, error) {
	if a == nil {
		return identity.Profile{}, fmt.Errorf("google: adapter is nil")
	}
	headers := map[string]string{
		"Authorization": "Bearer " + strings.TrimSpace(token.AccessToken),
	}

	endpoint := a.cfg.ProfileURL
	if strings.Contains(endpoint, "?") {
		endpoint += "&personFields=" + personFields
	} else {
		endpoint += "?personFields=" + personFields
	}

	person := peoplePayload{}
	status, err := identity.GetJSON(ctx, a.httpClient, endpoint, headers, &person)
	if err != nil {
		return identity.Profile{}, &identity.ProfileError{Provider: core.ProviderGoogle, Cause: err}
	}
	if status != http.StatusOK {
		return a.fetchFallbackProfile(ctx, headers)
	}
	return a.normalizePerson(person)
}

// fetchFallbackProfile queries userinfo v2 once the People API has
// refused the call.
func (a *Adapter) fetchFallbackProfile(ctx context.Context, headers map[string]string) (identity.Profile, error) {
	payload := userinfoPayload{}
	status, err := identity.GetJSON(ctx, a.httpClient, a.cfg.FallbackURL, headers, &payload)
	if err != nil {
		return identity.Profile{}, &identity.ProfileError{Provider: core.ProviderGoogle, Cause: err}
	}
	if status != http.StatusOK {
		return identity.Profile{}, &identity.ProfileError{
			Provider: core.ProviderGoogle,
			Cause:    fmt.Errorf("userinfo endpoint returned status %d", status),
		}
	}
	if strings.TrimSpace(payload.ID) == "" || strings.TrimSpace(payload.Email) == "" {
		return identity.Profile{}, &identity.ProfileError{
			Provider: core.ProviderGoogle,
			Cause:    fmt.Errorf("userinfo payload has no id or email"),
		}
	}

	name := strings.TrimSpace(payload.Name)
	if name == "" {
		name = identity.LocalPart(payload.Email)
	}
	return identity.Profile{
		ProviderUserID: strings.TrimSpace(payload.ID),
		Email:          strings.TrimSpace(payload.Email),
		Name:           name,
		AvatarURL:      strings.TrimSpace(payload.Picture),
	}, nil
}

func (a *Adapter) normalizePerson(person peoplePayload) (identity.Profile, error) {
	email := ""
	if len(person.EmailAddresses) > 0 {
		chosen := person.EmailAddresses[0]
		for _, candidate := range person.EmailAddresses {
			if candidate.Metadata.Primary {
				chosen = candidate
				break
			}
		}
		email = strings.TrimSpace(chosen.Value)
	}
	if email == "" {
		return identity.Profile{}, &identity.ProfileError{
			Provider: core.ProviderGoogle,
			Cause:    fmt.Errorf("people payload has no email"),
		}
	}

	name := ""
	if len(person.Names) > 0 {
		chosen := person.Names[0]
		for _, candidate := range person.Names {
			if candidate.Metadata.Primary {
				chosen = candidate
				break
			}
		}
		name = strings.TrimSpace(chosen.DisplayName)
		if name == "" {
			name = strings.TrimSpace(strings.TrimSpace(chosen.GivenName) + " " + strings.TrimSpace(chosen.FamilyName))
		}
	}
	if name == "" {
		name = identity.LocalPart(email)
	}

	avatarURL := ""
	if len(person.Photos) > 0 {
		chosen := person.Photos[0]
		for _, candidate := range person.Photos {
			if candidate.Metadata.Primary {
				chosen = candidate
				break
			}
		}
		avatarURL = strings.TrimSpace(chosen.URL)
	}

	userID := strings.TrimPrefix(strings.TrimSpace(person.ResourceName), resourcePrefix)
	if userID == "" {
		userID = identity.LocalPart(email)
	}

	return identity.Profile{
		ProviderUserID: userID,
		Email:          email,
		Name:           name,
		AvatarURL:      avatarURL,
	}, nil
}

var _ identity.Adapter = (*Adapter)(nil)
