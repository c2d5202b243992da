package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-identity-gateway/core"
	"github.com/goliatone/go-identity-gateway/identity"
	"github.com/goliatone/go-identity-gateway/token"
)

type fakeUserStore struct {
	users      map[string]core.User
	identities map[string]core.ExternalIdentity
	failWith   error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:      map[string]core.User{},
		identities: map[string]core.ExternalIdentity{},
	}
}

func identityKey(provider, providerAccountID string) string {
	return provider + "/" + providerAccountID
}

func (s *fakeUserStore) FindByID(_ context.Context, id string) (core.User, bool, error) {
	if s.failWith != nil {
		return core.User{}, false, s.failWith
	}
	user, ok := s.users[id]
	return user, ok, nil
}

func (s *fakeUserStore) FindByEmail(_ context.Context, email string) (core.User, bool, error) {
	if s.failWith != nil {
		return core.User{}, false, s.failWith
	}
	for _, user := range s.users {
		if user.Email == email {
			return user, true, nil
		}
	}
	return core.User{}, false, nil
}

func (s *fakeUserStore) Upsert(_ context.Context, user core.User) (core.User, error) {
	if s.failWith != nil {
		return core.User{}, s.failWith
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *fakeUserStore) FindIdentity(_ context.Context, provider, providerAccountID string) (core.ExternalIdentity, bool, error) {
	if s.failWith != nil {
		return core.ExternalIdentity{}, false, s.failWith
	}
	row, ok := s.identities[identityKey(provider, providerAccountID)]
	return row, ok, nil
}

func (s *fakeUserStore) SaveIdentity(_ context.Context, row core.ExternalIdentity) (core.ExternalIdentity, error) {
	if s.failWith != nil {
		return core.ExternalIdentity{}, s.failWith
	}
	s.identities[identityKey(row.Provider, row.ProviderAccountID)] = row
	return row, nil
}

type fakeSessionStore struct {
	sessions []core.Session
	deleted  []string
}

func (s *fakeSessionStore) Create(_ context.Context, session core.Session) (core.Session, error) {
	s.sessions = append(s.sessions, session)
	return session, nil
}

func (s *fakeSessionStore) DeleteAllForUser(_ context.Context, userID string) error {
	s.deleted = append(s.deleted, userID)
	remaining := s.sessions[:0]
	for _, session := range s.sessions {
		if session.UserID != userID {
			remaining = append(remaining, session)
		}
	}
	s.sessions = remaining
	return nil
}

type fakeAdapter struct {
	provider    string
	token       identity.ProviderToken
	profile     identity.Profile
	exchangeErr error
	profileErr  error
}

func (a *fakeAdapter) Provider() string { return a.provider }

func (a *fakeAdapter) ExchangeCode(context.Context, string) (identity.ProviderToken, error) {
	if a.exchangeErr != nil {
		return identity.ProviderToken{}, a.exchangeErr
	}
	return a.token, nil
}

func (a *fakeAdapter) FetchProfile(context.Context, identity.ProviderToken) (identity.Profile, error) {
	if a.profileErr != nil {
		return identity.Profile{}, a.profileErr
	}
	return a.profile, nil
}

func newTestService(t *testing.T, users *fakeUserStore, sessions *fakeSessionStore, adapters ...identity.Adapter) *Service {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Token.Secret = "test-secret"
	codec, err := token.NewCodec(cfg.Token)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	service, err := NewService(cfg, Dependencies{
		Codec:    codec,
		Adapters: identity.NewRegistry(adapters...),
		Users:    users,
		Sessions: sessions,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func githubAdapter() *fakeAdapter {
	return &fakeAdapter{
		provider: core.ProviderGitHub,
		token:    identity.ProviderToken{AccessToken: "gh_token", Scope: "user:email"},
		profile: identity.Profile{
			ProviderUserID: "10042",
			Email:          "user@example.com",
			Name:           "Test User",
			Username:       "octocat",
			AvatarURL:      "https://example.com/a.png",
		},
	}
}

func TestService_LoginCreatesUserAndSession(t *testing.T) {
	users := newFakeUserStore()
	sessions := &fakeSessionStore{}
	service := newTestService(t, users, sessions, githubAdapter())

	result, err := service.Login(context.Background(), "github", "code_1", core.ClientContext{
		IPAddress: "203.0.113.7",
		UserAgent: "test-agent",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", result)
	}
	if result.User.Email != "user@example.com" {
		t.Fatalf("unexpected user email %q", result.User.Email)
	}
	if !result.User.Verified {
		t.Fatal("expected provider-backed user to be verified")
	}
	if result.User.GithubUsername != "octocat" {
		t.Fatalf("expected github username, got %q", result.User.GithubUsername)
	}
	if len(users.identities) != 1 {
		t.Fatalf("expected one linked identity, got %d", len(users.identities))
	}
	if len(sessions.sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(sessions.sessions))
	}
	session := sessions.sessions[0]
	if session.TokenFingerprint != token.Fingerprint(result.AccessToken) {
		t.Fatalf("session fingerprint does not match issued token")
	}
	if session.IPAddress != "203.0.113.7" || session.UserAgent != "test-agent" {
		t.Fatalf("session missing client context: %+v", session)
	}
}

func TestService_LoginReusesExistingIdentity(t *testing.T) {
	users := newFakeUserStore()
	sessions := &fakeSessionStore{}
	adapter := githubAdapter()
	service := newTestService(t, users, sessions, adapter)

	first, err := service.Login(context.Background(), "github", "code_1", core.ClientContext{})
	if err != nil {
		t.Fatalf("first login: %v", err)
	}

	adapter.profile.Name = "Renamed User"
	adapter.token.AccessToken = "gh_token_2"

	second, err := service.Login(context.Background(), "github", "code_2", core.ClientContext{})
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if second.User.ID != first.User.ID {
		t.Fatalf("expected same canonical user, got %q and %q", first.User.ID, second.User.ID)
	}
	if second.User.Name != "Renamed User" {
		t.Fatalf("expected refreshed name, got %q", second.User.Name)
	}
	if len(users.users) != 1 {
		t.Fatalf("expected a single user row, got %d", len(users.users))
	}
	row := users.identities[identityKey("github", "10042")]
	if row.AccessToken != "gh_token_2" {
		t.Fatalf("expected refreshed provider token, got %q", row.AccessToken)
	}
}

func TestService_LoginLinksSecondProviderByEmail(t *testing.T) {
	users := newFakeUserStore()
	sessions := &fakeSessionStore{}
	google := &fakeAdapter{
		provider: core.ProviderGoogle,
		token:    identity.ProviderToken{AccessToken: "g_token"},
		profile: identity.Profile{
			ProviderUserID: "g_9001",
			Email:          "user@example.com",
			Name:           "Test User",
		},
	}
	service := newTestService(t, users, sessions, githubAdapter(), google)

	first, err := service.Login(context.Background(), "github", "code_1", core.ClientContext{})
	if err != nil {
		t.Fatalf("github login: %v", err)
	}
	second, err := service.Login(context.Background(), "google", "code_2", core.ClientContext{})
	if err != nil {
		t.Fatalf("google login: %v", err)
	}
	if second.User.ID != first.User.ID {
		t.Fatalf("expected email match to link identities to one user")
	}
	if len(users.users) != 1 {
		t.Fatalf("expected one user, got %d", len(users.users))
	}
	if len(users.identities) != 2 {
		t.Fatalf("expected two linked identities, got %d", len(users.identities))
	}
}

func TestService_LoginRejectsUnknownProvider(t *testing.T) {
	service := newTestService(t, newFakeUserStore(), &fakeSessionStore{}, githubAdapter())

	_, err := service.Login(context.Background(), "gitlab", "code_1", core.ClientContext{})
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestService_LoginRequiresCode(t *testing.T) {
	service := newTestService(t, newFakeUserStore(), &fakeSessionStore{}, githubAdapter())

	_, err := service.Login(context.Background(), "github", "   ", core.ClientContext{})
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestService_LoginBubblesExchangeFailure(t *testing.T) {
	adapter := githubAdapter()
	adapter.exchangeErr = &identity.ExchangeError{Provider: "github", Cause: errors.New("bad code")}
	service := newTestService(t, newFakeUserStore(), &fakeSessionStore{}, adapter)

	_, err := service.Login(context.Background(), "github", "code_1", core.ClientContext{})
	if !errors.Is(err, identity.ErrExchangeFailed) {
		t.Fatalf("expected exchange failure to pass through, got %v", err)
	}
}

func TestService_RefreshMintsAccessOnly(t *testing.T) {
	users := newFakeUserStore()
	sessions := &fakeSessionStore{}
	service := newTestService(t, users, sessions, githubAdapter())

	login, err := service.Login(context.Background(), "github", "code_1", core.ClientContext{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	pair, err := service.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if pair.RefreshToken != login.RefreshToken {
		t.Fatal("expected refresh token to be returned unchanged")
	}
	if pair.AccessToken == "" {
		t.Fatal("expected a fresh access token")
	}
	subject, err := service.codec.Verify(pair.AccessToken, token.TypeAccess)
	if err != nil {
		t.Fatalf("verify minted access token: %v", err)
	}
	if subject != login.User.ID {
		t.Fatalf("expected subject %q, got %q", login.User.ID, subject)
	}
}

func TestService_RefreshRejectsAccessToken(t *testing.T) {
	service := newTestService(t, newFakeUserStore(), &fakeSessionStore{}, githubAdapter())

	login, err := service.Login(context.Background(), "github", "code_1", core.ClientContext{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := service.Refresh(context.Background(), login.AccessToken); !errors.Is(err, token.ErrTokenTypeMismatch) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
}

func TestService_RefreshRejectsUnknownSubject(t *testing.T) {
	users := newFakeUserStore()
	service := newTestService(t, users, &fakeSessionStore{}, githubAdapter())

	login, err := service.Login(context.Background(), "github", "code_1", core.ClientContext{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	delete(users.users, login.User.ID)

	if _, err := service.Refresh(context.Background(), login.RefreshToken); !errors.Is(err, ErrAuthenticationRequired) {
		t.Fatalf("expected ErrAuthenticationRequired, got %v", err)
	}
}

func TestService_LogoutRemovesEverySession(t *testing.T) {
	users := newFakeUserStore()
	sessions := &fakeSessionStore{}
	service := newTestService(t, users, sessions, githubAdapter())

	login, err := service.Login(context.Background(), "github", "code_1", core.ClientContext{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := service.Login(context.Background(), "github", "code_2", core.ClientContext{}); err != nil {
		t.Fatalf("second login: %v", err)
	}
	if err := service.Logout(context.Background(), login.User.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(sessions.sessions) != 0 {
		t.Fatalf("expected all sessions removed, %d left", len(sessions.sessions))
	}
}

func TestService_CurrentUserToleratesBadTokens(t *testing.T) {
	users := newFakeUserStore()
	service := newTestService(t, users, &fakeSessionStore{}, githubAdapter())

	if _, ok := service.CurrentUser(context.Background(), "not-a-token"); ok {
		t.Fatal("expected malformed token to resolve to anonymous")
	}
	if _, ok := service.CurrentUser(context.Background(), ""); ok {
		t.Fatal("expected empty token to resolve to anonymous")
	}

	login, err := service.Login(context.Background(), "github", "code_1", core.ClientContext{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	user, ok := service.CurrentUser(context.Background(), login.AccessToken)
	if !ok {
		t.Fatal("expected valid token to resolve")
	}
	if user.ID != login.User.ID {
		t.Fatalf("expected user %q, got %q", login.User.ID, user.ID)
	}
}

func TestService_RequireCurrentUserFailsClosed(t *testing.T) {
	service := newTestService(t, newFakeUserStore(), &fakeSessionStore{}, githubAdapter())

	if _, err := service.RequireCurrentUser(context.Background(), "bogus"); !errors.Is(err, ErrAuthenticationRequired) {
		t.Fatalf("expected ErrAuthenticationRequired, got %v", err)
	}
}

func TestService_PasswordLoginRegistersThenAuthenticates(t *testing.T) {
	users := newFakeUserStore()
	sessions := &fakeSessionStore{}
	service := newTestService(t, users, sessions, githubAdapter())

	first, err := service.PasswordLogin(context.Background(), "Dev@Example.com", "Dev User", "hunter22", core.ClientContext{})
	if err != nil {
		t.Fatalf("first password login: %v", err)
	}
	if first.User.Email != "dev@example.com" {
		t.Fatalf("expected lowercased email, got %q", first.User.Email)
	}
	if first.User.HashedPassword == "" || first.User.HashedPassword == "hunter22" {
		t.Fatal("expected password to be stored hashed")
	}

	second, err := service.PasswordLogin(context.Background(), "dev@example.com", "", "hunter22", core.ClientContext{})
	if err != nil {
		t.Fatalf("second password login: %v", err)
	}
	if second.User.ID != first.User.ID {
		t.Fatal("expected the registered user back")
	}

	if _, err := service.PasswordLogin(context.Background(), "dev@example.com", "", "wrong", core.ClientContext{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_PasswordLoginRejectsProviderOnlyAccount(t *testing.T) {
	users := newFakeUserStore()
	service := newTestService(t, users, &fakeSessionStore{}, githubAdapter())

	if _, err := service.Login(context.Background(), "github", "code_1", core.ClientContext{}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := service.PasswordLogin(context.Background(), "user@example.com", "", "any", core.ClientContext{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for passwordless account, got %v", err)
	}
}

func TestService_SessionExpiryTracksAccessTTL(t *testing.T) {
	users := newFakeUserStore()
	sessions := &fakeSessionStore{}
	cfg := core.DefaultConfig()
	cfg.Token.Secret = "test-secret"
	codec, err := token.NewCodec(cfg.Token)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service, err := NewService(cfg, Dependencies{
		Codec:    codec,
		Adapters: identity.NewRegistry(githubAdapter()),
		Users:    users,
		Sessions: sessions,
		Now:      func() time.Time { return fixed },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := service.Login(context.Background(), "github", "code_1", core.ClientContext{}); err != nil {
		t.Fatalf("login: %v", err)
	}
	want := fixed.Add(cfg.Token.AccessTTL)
	if got := sessions.sessions[0].ExpiresAt; !got.Equal(want) {
		t.Fatalf("expected session expiry %v, got %v", want, got)
	}
}
