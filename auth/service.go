// Package auth orchestrates login, token lifecycle, and session
// management over the identity provider adapters.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-identity-gateway/core"
	"github.com/goliatone/go-identity-gateway/identity"
	"github.com/goliatone/go-identity-gateway/token"
)

// LoginResult carries both tokens plus the fully resolved user. Login
// never returns without one.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         core.User
}

// TokenPair is the refresh outcome. The refresh token is returned
// unchanged: refresh does not rotate it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type Dependencies struct {
	Codec          *token.Codec
	Adapters       *identity.Registry
	Users          core.UserStore
	Sessions       core.SessionStore
	Logger         core.Logger
	LoggerProvider core.LoggerProvider
	Now            func() time.Time
}

type Service struct {
	cfg      core.Config
	codec    *token.Codec
	adapters *identity.Registry
	users    core.UserStore
	sessions core.SessionStore
	logger   core.Logger
	now      func() time.Time
}

func NewService(cfg core.Config, deps Dependencies) (*Service, error) {
	if deps.Codec == nil {
		return nil, fmt.Errorf("auth: token codec is required")
	}
	if deps.Adapters == nil {
		return nil, fmt.Errorf("auth: adapter registry is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("auth: user store is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("auth: session store is required")
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time {
			return time.Now().UTC()
		}
	}
	return &Service{
		cfg:      cfg,
		codec:    deps.Codec,
		adapters: deps.Adapters,
		users:    deps.Users,
		sessions: deps.Sessions,
		logger:   core.ResolveLogger("auth", deps.LoggerProvider, deps.Logger),
		now:      now,
	}, nil
}

// Login exchanges a provider authorization code for a gateway session.
// Adapter failures bubble unchanged; the caller always gets either a
// resolved user or a classified error.
func (s *Service) Login(ctx context.Context, provider string, code string, client core.ClientContext) (LoginResult, error) {
	if s == nil {
		return LoginResult{}, fmt.Errorf("auth: service is nil")
	}
	provider = core.NormalizeProvider(provider)
	adapter, ok := s.adapters.Resolve(provider)
	if !ok {
		err := authError(ErrUnsupportedProvider, fmt.Sprintf("provider %q", provider))
		core.LogOperation(ctx, s.logger, "login", err, map[string]any{"provider": provider})
		return LoginResult{}, err
	}
	if strings.TrimSpace(code) == "" {
		err := authError(ErrMissingCredential, "authorization code is required")
		core.LogOperation(ctx, s.logger, "login", err, map[string]any{"provider": provider})
		return LoginResult{}, err
	}

	providerToken, err := adapter.ExchangeCode(ctx, code)
	if err != nil {
		core.LogOperation(ctx, s.logger, "login", err, map[string]any{"provider": provider})
		return LoginResult{}, err
	}
	profile, err := adapter.FetchProfile(ctx, providerToken)
	if err != nil {
		core.LogOperation(ctx, s.logger, "login", err, map[string]any{"provider": provider})
		return LoginResult{}, err
	}

	user, err := s.resolveUser(ctx, provider, profile, providerToken)
	if err != nil {
		core.LogOperation(ctx, s.logger, "login", err, map[string]any{"provider": provider})
		return LoginResult{}, err
	}

	result, err := s.openSession(ctx, user, client)
	core.LogOperation(ctx, s.logger, "login", err, map[string]any{
		"provider": provider,
		"user_id":  user.ID,
	})
	return result, err
}

// resolveUser maps a provider profile onto the canonical account:
// an existing identity refreshes the profile fields, an email match
// links a new identity, anything else creates a verified user.
func (s *Service) resolveUser(ctx context.Context, provider string, profile identity.Profile, providerToken identity.ProviderToken) (core.User, error) {
	now := s.now()

	existing, found, err := s.users.FindIdentity(ctx, provider, profile.ProviderUserID)
	if err != nil {
		return core.User{}, err
	}
	if found {
		user, ok, err := s.users.FindByID(ctx, existing.UserID)
		if err != nil {
			return core.User{}, err
		}
		if !ok {
			return core.User{}, fmt.Errorf("auth: identity %s references missing user %s", existing.ID, existing.UserID)
		}
		user.Name = profile.Name
		if profile.AvatarURL != "" {
			user.AvatarURL = profile.AvatarURL
		}
		if provider == core.ProviderGitHub && profile.Username != "" {
			user.GithubUsername = profile.Username
		}
		user.UpdatedAt = now
		user, err = s.users.Upsert(ctx, user)
		if err != nil {
			return core.User{}, err
		}

		existing.AccessToken = providerToken.AccessToken
		existing.RefreshToken = providerToken.RefreshToken
		existing.Scope = providerToken.Scope
		existing.ExpiresAt = expiryFrom(now, providerToken.ExpiresIn)
		existing.UpdatedAt = now
		if _, err := s.users.SaveIdentity(ctx, existing); err != nil {
			return core.User{}, err
		}
		return user, nil
	}

	user, ok, err := s.users.FindByEmail(ctx, profile.Email)
	if err != nil {
		return core.User{}, err
	}
	if !ok {
		user = core.User{
			ID:        uuid.NewString(),
			Email:     profile.Email,
			Name:      profile.Name,
			Username:  identity.LocalPart(profile.Email),
			AvatarURL: profile.AvatarURL,
			Role:      core.UserRoleUser,
			Verified:  true, // the provider already verified this account
			CreatedAt: now,
			UpdatedAt: now,
		}
		if provider == core.ProviderGitHub {
			user.GithubUsername = profile.Username
		}
		user, err = s.users.Upsert(ctx, user)
		if err != nil {
			return core.User{}, err
		}
	}

	identityRow := core.ExternalIdentity{
		ID:                uuid.NewString(),
		UserID:            user.ID,
		Provider:          provider,
		ProviderAccountID: profile.ProviderUserID,
		AccessToken:       providerToken.AccessToken,
		RefreshToken:      providerToken.RefreshToken,
		Scope:             providerToken.Scope,
		ExpiresAt:         expiryFrom(now, providerToken.ExpiresIn),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if _, err := s.users.SaveIdentity(ctx, identityRow); err != nil {
		return core.User{}, err
	}
	return user, nil
}

// Refresh verifies a refresh token and mints a new access token. The
// same refresh token is handed back; rotation is deliberately absent.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if s == nil {
		return TokenPair{}, fmt.Errorf("auth: service is nil")
	}
	subject, err := s.codec.Verify(refreshToken, token.TypeRefresh)
	if err != nil {
		core.LogOperation(ctx, s.logger, "refresh", err, nil)
		return TokenPair{}, err
	}
	user, ok, err := s.users.FindByID(ctx, subject)
	if err != nil {
		core.LogOperation(ctx, s.logger, "refresh", err, map[string]any{"user_id": subject})
		return TokenPair{}, err
	}
	if !ok {
		absent := authError(ErrAuthenticationRequired, "refresh token subject is unknown")
		core.LogOperation(ctx, s.logger, "refresh", absent, map[string]any{"user_id": subject})
		return TokenPair{}, absent
	}

	accessToken, err := s.codec.Issue(user.ID, token.TypeAccess, s.cfg.Token.AccessTTL)
	if err != nil {
		core.LogOperation(ctx, s.logger, "refresh", err, map[string]any{"user_id": user.ID})
		return TokenPair{}, err
	}
	core.LogOperation(ctx, s.logger, "refresh", nil, map[string]any{"user_id": user.ID})
	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: strings.TrimSpace(refreshToken),
	}, nil
}

// Logout invalidates every session the user holds, not one device.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if s == nil {
		return fmt.Errorf("auth: service is nil")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return authError(ErrMissingCredential, "user id is required")
	}
	err := s.sessions.DeleteAllForUser(ctx, userID)
	core.LogOperation(ctx, s.logger, "logout", err, map[string]any{"user_id": userID})
	return err
}

// CurrentUser resolves the bearer token to a user, tolerating absence:
// any verification or lookup failure yields (zero, false) instead of an
// error so endpoints can serve anonymous callers.
func (s *Service) CurrentUser(ctx context.Context, bearerToken string) (core.User, bool) {
	if s == nil {
		return core.User{}, false
	}
	subject, err := s.codec.Verify(bearerToken, token.TypeAccess)
	if err != nil {
		return core.User{}, false
	}
	user, ok, err := s.users.FindByID(ctx, subject)
	if err != nil || !ok {
		return core.User{}, false
	}
	return user, true
}

// RequireCurrentUser is the strict twin of CurrentUser.
func (s *Service) RequireCurrentUser(ctx context.Context, bearerToken string) (core.User, error) {
	if s == nil {
		return core.User{}, fmt.Errorf("auth: service is nil")
	}
	user, ok := s.CurrentUser(ctx, bearerToken)
	if !ok {
		return core.User{}, authError(ErrAuthenticationRequired, "authorization token required")
	}
	return user, nil
}

// PasswordLogin is the direct email/password path used outside
// production. The first login for an email registers the account.
func (s *Service) PasswordLogin(ctx context.Context, email string, name string, password string, client core.ClientContext) (LoginResult, error) {
	if s == nil {
		return LoginResult{}, fmt.Errorf("auth: service is nil")
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return LoginResult{}, authError(ErrMissingCredential, "email and password are required")
	}

	user, ok, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return LoginResult{}, err
	}
	if !ok {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return LoginResult{}, fmt.Errorf("auth: hash password: %w", err)
		}
		now := s.now()
		user = core.User{
			ID:             uuid.NewString(),
			Email:          email,
			Name:           strings.TrimSpace(name),
			Username:       identity.LocalPart(email),
			HashedPassword: string(hashed),
			Role:           core.UserRoleUser,
			Verified:       true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if user.Name == "" {
			user.Name = user.Username
		}
		user, err = s.users.Upsert(ctx, user)
		if err != nil {
			return LoginResult{}, err
		}
	} else {
		if user.HashedPassword == "" {
			return LoginResult{}, authError(ErrInvalidCredentials, "account has no password credential")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
			return LoginResult{}, authError(ErrInvalidCredentials, "password mismatch")
		}
	}

	result, err := s.openSession(ctx, user, client)
	core.LogOperation(ctx, s.logger, "password_login", err, map[string]any{"user_id": user.ID})
	return result, err
}

func (s *Service) openSession(ctx context.Context, user core.User, client core.ClientContext) (LoginResult, error) {
	accessToken, err := s.codec.Issue(user.ID, token.TypeAccess, s.cfg.Token.AccessTTL)
	if err != nil {
		return LoginResult{}, err
	}
	refreshToken, err := s.codec.Issue(user.ID, token.TypeRefresh, s.cfg.Token.RefreshTTL)
	if err != nil {
		return LoginResult{}, err
	}

	now := s.now()
	session := core.Session{
		ID:               uuid.NewString(),
		UserID:           user.ID,
		TokenFingerprint: token.Fingerprint(accessToken),
		ExpiresAt:        now.Add(s.accessTTL()),
		IPAddress:        strings.TrimSpace(client.IPAddress),
		UserAgent:        strings.TrimSpace(client.UserAgent),
		CreatedAt:        now,
	}
	if _, err := s.sessions.Create(ctx, session); err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

func (s *Service) accessTTL() time.Duration {
	if s != nil && s.cfg.Token.AccessTTL > 0 {
		return s.cfg.Token.AccessTTL
	}
	return core.DefaultAccessTokenTTL
}

func expiryFrom(now time.Time, expiresIn int64) *time.Time {
	if expiresIn <= 0 {
		return nil
	}
	expiry := now.Add(time.Duration(expiresIn) * time.Second)
	return &expiry
}
