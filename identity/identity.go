// Package identity normalizes third-party login providers behind one
// adapter contract. Each provider variant owns its own quirks; the rest
// of the gateway only ever sees the normalized profile shape.
package identity

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-identity-gateway/core"
)

const (
	DefaultRequestTimeout   = 10 * time.Second
	MaxProfileResponseBytes = 1 << 20 // 1 MiB
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ProviderToken is the credential a provider hands back for an
// authorization code.
type ProviderToken struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	Scope        string
	ExpiresIn    int64
}

// Profile is the normalized account shape every variant produces. A
// successful fetch always carries a non-empty ProviderUserID and Email.
type Profile struct {
	ProviderUserID string
	Email          string
	Name           string
	AvatarURL      string
	Username       string
}

// Adapter is the capability contract one provider variant implements.
type Adapter interface {
	Provider() string
	ExchangeCode(ctx context.Context, code string) (ProviderToken, error)
	FetchProfile(ctx context.Context, token ProviderToken) (Profile, error)
}

// Registry resolves adapters by normalized provider name.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	registry := &Registry{adapters: map[string]Adapter{}}
	for _, adapter := range adapters {
		registry.Register(adapter)
	}
	return registry
}

func (r *Registry) Register(adapter Adapter) {
	if r == nil || adapter == nil {
		return
	}
	name := core.NormalizeProvider(adapter.Provider())
	if name == "" {
		return
	}
	if r.adapters == nil {
		r.adapters = map[string]Adapter{}
	}
	r.adapters[name] = adapter
}

func (r *Registry) Resolve(provider string) (Adapter, bool) {
	if r == nil || len(r.adapters) == 0 {
		return nil, false
	}
	adapter, ok := r.adapters[core.NormalizeProvider(provider)]
	return adapter, ok
}

func (r *Registry) Providers() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}

// LocalPart extracts the part of an email before the @, used as a
// display-name fallback by several variants.
func LocalPart(email string) string {
	email = strings.TrimSpace(email)
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
