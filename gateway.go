// Package identitygateway assembles the gateway services from one
// configuration: provider adapters, token codec, authentication,
// repository links, metadata sync, and webhook ingestion.
package identitygateway

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-identity-gateway/auth"
	"github.com/goliatone/go-identity-gateway/core"
	"github.com/goliatone/go-identity-gateway/hosting"
	"github.com/goliatone/go-identity-gateway/identity"
	"github.com/goliatone/go-identity-gateway/identity/github"
	"github.com/goliatone/go-identity-gateway/identity/google"
	"github.com/goliatone/go-identity-gateway/identity/kakao"
	"github.com/goliatone/go-identity-gateway/repolink"
	"github.com/goliatone/go-identity-gateway/sync"
	"github.com/goliatone/go-identity-gateway/token"
	"github.com/goliatone/go-identity-gateway/webhooks"
)

// Stores bundles the persistence contracts a Gateway needs. The
// store/sql package provides a RepositoryFactory that yields all
// three from one bun handle.
type Stores struct {
	Users    core.UserStore
	Sessions core.SessionStore
	Links    core.RepositoryLinkStore
}

type Dependencies struct {
	Stores         Stores
	Adapters       []identity.Adapter
	LoggerProvider core.LoggerProvider
	Logger         core.Logger
	Now            func() time.Time
}

// Gateway exposes the assembled services. Fields are set once during
// New and safe for concurrent use afterwards.
type Gateway struct {
	Config   core.Config
	Auth     *auth.Service
	Links    *repolink.Service
	Hosting  *hosting.Client
	Sync     *sync.Engine
	Webhooks *webhooks.Ingestor
}

// New builds a Gateway. Provider adapters come from configuration
// unless deps.Adapters supplies them explicitly (tests inject fakes
// that way).
func New(cfg core.Config, deps Dependencies) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Stores.Users == nil || deps.Stores.Sessions == nil || deps.Stores.Links == nil {
		return nil, fmt.Errorf("identitygateway: user, session, and link stores are required")
	}

	codec, err := token.NewCodec(cfg.Token)
	if err != nil {
		return nil, err
	}

	adapters := deps.Adapters
	if len(adapters) == 0 {
		adapters, err = adaptersFromConfig(cfg)
		if err != nil {
			return nil, err
		}
	}

	authService, err := auth.NewService(cfg, auth.Dependencies{
		Codec:          codec,
		Adapters:       identity.NewRegistry(adapters...),
		Users:          deps.Stores.Users,
		Sessions:       deps.Stores.Sessions,
		Logger:         deps.Logger,
		LoggerProvider: deps.LoggerProvider,
		Now:            deps.Now,
	})
	if err != nil {
		return nil, err
	}

	linkService, err := repolink.NewService(repolink.Config{Host: cfg.Links.Host}, repolink.Dependencies{
		Links:          deps.Stores.Links,
		Logger:         deps.Logger,
		LoggerProvider: deps.LoggerProvider,
		Now:            deps.Now,
	})
	if err != nil {
		return nil, err
	}

	hostingClient, err := hosting.NewClient(cfg.Hosting, nil)
	if err != nil {
		return nil, err
	}

	engine, err := sync.NewEngine(cfg.Sync, sync.Dependencies{
		Links:          deps.Stores.Links,
		Remote:         hostingClient,
		Logger:         deps.Logger,
		LoggerProvider: deps.LoggerProvider,
		Now:            deps.Now,
	})
	if err != nil {
		return nil, err
	}

	ingestor, err := webhooks.NewIngestor(cfg.Webhook, webhooks.Dependencies{
		Links:          deps.Stores.Links,
		Engine:         engine,
		Host:           cfg.Links.Host,
		Logger:         deps.Logger,
		LoggerProvider: deps.LoggerProvider,
		Now:            deps.Now,
	})
	if err != nil {
		return nil, err
	}

	return &Gateway{
		Config:   cfg,
		Auth:     authService,
		Links:    linkService,
		Hosting:  hostingClient,
		Sync:     engine,
		Webhooks: ingestor,
	}, nil
}

// NewFromProvider loads configuration through a core.ConfigProvider
// before assembling the Gateway.
func NewFromProvider(ctx context.Context, provider core.ConfigProvider, deps Dependencies) (*Gateway, error) {
	if provider == nil {
		return nil, fmt.Errorf("identitygateway: config provider is required")
	}
	cfg, err := provider.Load(ctx, core.DefaultConfig())
	if err != nil {
		return nil, err
	}
	return New(cfg, deps)
}

func adaptersFromConfig(cfg core.Config) ([]identity.Adapter, error) {
	adapters := make([]identity.Adapter, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		providerCfg, _ := cfg.Provider(name)
		var (
			adapter identity.Adapter
			err     error
		)
		switch core.NormalizeProvider(name) {
		case core.ProviderGitHub:
			adapter, err = github.FromProviderConfig(providerCfg)
		case core.ProviderGoogle:
			adapter, err = google.FromProviderConfig(providerCfg)
		case core.ProviderKakao:
			adapter, err = kakao.FromProviderConfig(providerCfg)
		default:
			err = fmt.Errorf("identitygateway: unknown provider %q", name)
		}
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	return adapters, nil
}
