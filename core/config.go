package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultAccessTokenTTL  = 30 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	DefaultRemoteTimeout   = 10 * time.Second
	DefaultSyncWorkers     = 4
)

// TokenConfig drives the bearer-token codec. The secret is read-only
// after startup; business logic never reaches for process globals.
type TokenConfig struct {
	Secret     string        `koanf:"secret" mapstructure:"secret"`
	Algorithm  string        `koanf:"algorithm" mapstructure:"algorithm"`
	AccessTTL  time.Duration `koanf:"access_ttl" mapstructure:"access_ttl"`
	RefreshTTL time.Duration `koanf:"refresh_ttl" mapstructure:"refresh_ttl"`
}

// ProviderConfig holds one identity provider's OAuth client settings.
// Endpoint overrides exist so tests can point a variant at a fixture
// server.
type ProviderConfig struct {
	ClientID     string `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string `koanf:"client_secret" mapstructure:"client_secret"`
	RedirectURI  string `koanf:"redirect_uri" mapstructure:"redirect_uri"`
	TokenURL     string `koanf:"token_url" mapstructure:"token_url"`
	ProfileURL   string `koanf:"profile_url" mapstructure:"profile_url"`
	EmailURL     string `koanf:"email_url" mapstructure:"email_url"`
	FallbackURL  string `koanf:"fallback_url" mapstructure:"fallback_url"`
}

type HostingConfig struct {
	BaseURL   string        `koanf:"base_url" mapstructure:"base_url"`
	Token     string        `koanf:"token" mapstructure:"token"`
	UserAgent string        `koanf:"user_agent" mapstructure:"user_agent"`
	Timeout   time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

type WebhookConfig struct {
	Secret string `koanf:"secret" mapstructure:"secret"`
}

// LinkConfig scopes which hosting domain repository links may point at.
type LinkConfig struct {
	Host string `koanf:"host" mapstructure:"host"`
}

type SyncConfig struct {
	Workers int `koanf:"workers" mapstructure:"workers"`
}

type Config struct {
	ServiceName string                    `koanf:"service_name" mapstructure:"service_name"`
	Token       TokenConfig               `koanf:"token" mapstructure:"token"`
	Providers   map[string]ProviderConfig `koanf:"providers" mapstructure:"providers"`
	Hosting     HostingConfig             `koanf:"hosting" mapstructure:"hosting"`
	Webhook     WebhookConfig             `koanf:"webhook" mapstructure:"webhook"`
	Links       LinkConfig                `koanf:"links" mapstructure:"links"`
	Sync        SyncConfig                `koanf:"sync" mapstructure:"sync"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "identity-gateway",
		Token: TokenConfig{
			Algorithm:  "HS256",
			AccessTTL:  DefaultAccessTokenTTL,
			RefreshTTL: DefaultRefreshTokenTTL,
		},
		Providers: map[string]ProviderConfig{},
		Hosting: HostingConfig{
			BaseURL:   "https://api.github.com",
			UserAgent: "identity-gateway/1.0",
			Timeout:   DefaultRemoteTimeout,
		},
		Links: LinkConfig{
			Host: "github.com",
		},
		Sync: SyncConfig{
			Workers: DefaultSyncWorkers,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Token.Secret) == "" {
		return fmt.Errorf("core: token.secret is required")
	}
	if c.Token.AccessTTL <= 0 {
		return fmt.Errorf("core: token.access_ttl must be positive")
	}
	if c.Token.RefreshTTL <= 0 {
		return fmt.Errorf("core: token.refresh_ttl must be positive")
	}
	if strings.TrimSpace(c.Hosting.BaseURL) == "" {
		return fmt.Errorf("core: hosting.base_url is required")
	}
	if c.Sync.Workers < 0 {
		return fmt.Errorf("core: sync.workers must not be negative")
	}
	for name := range c.Providers {
		if !KnownProvider(name) {
			return fmt.Errorf("core: unknown provider %q in configuration", name)
		}
	}
	return nil
}

// Provider returns the configured settings for a provider, keyed
// case-insensitively.
func (c Config) Provider(name string) (ProviderConfig, bool) {
	normalized := NormalizeProvider(name)
	cfg, ok := c.Providers[normalized]
	return cfg, ok
}
