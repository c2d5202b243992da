package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-identity-gateway/core"
)

type userRecord struct {
	bun.BaseModel `bun:"table:gateway_users,alias:gu"`

	ID             string    `bun:"id,pk"`
	Email          string    `bun:"email,notnull,unique"`
	Name           string    `bun:"name"`
	Username       string    `bun:"username"`
	AvatarURL      string    `bun:"avatar_url"`
	GithubUsername string    `bun:"github_username"`
	HashedPassword string    `bun:"hashed_password"`
	Role           string    `bun:"role,notnull"`
	Verified       bool      `bun:"verified,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newUserRecord(user core.User) *userRecord {
	return &userRecord{
		ID:             user.ID,
		Email:          user.Email,
		Name:           user.Name,
		Username:       user.Username,
		AvatarURL:      user.AvatarURL,
		GithubUsername: user.GithubUsername,
		HashedPassword: user.HashedPassword,
		Role:           string(user.Role),
		Verified:       user.Verified,
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
	}
}

func (r *userRecord) toDomain() core.User {
	if r == nil {
		return core.User{}
	}
	return core.User{
		ID:             r.ID,
		Email:          r.Email,
		Name:           r.Name,
		Username:       r.Username,
		AvatarURL:      r.AvatarURL,
		GithubUsername: r.GithubUsername,
		HashedPassword: r.HashedPassword,
		Role:           core.UserRole(r.Role),
		Verified:       r.Verified,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type identityRecord struct {
	bun.BaseModel `bun:"table:gateway_auth_identities,alias:gai"`

	ID                string     `bun:"id,pk"`
	UserID            string     `bun:"user_id,notnull"`
	Provider          string     `bun:"provider,notnull"`
	ProviderAccountID string     `bun:"provider_account_id,notnull"`
	AccessToken       string     `bun:"access_token"`
	RefreshToken      string     `bun:"refresh_token"`
	Scope             string     `bun:"scope"`
	ExpiresAt         *time.Time `bun:"expires_at,nullzero"`
	CreatedAt         time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newIdentityRecord(identity core.ExternalIdentity) *identityRecord {
	return &identityRecord{
		ID:                identity.ID,
		UserID:            identity.UserID,
		Provider:          identity.Provider,
		ProviderAccountID: identity.ProviderAccountID,
		AccessToken:       identity.AccessToken,
		RefreshToken:      identity.RefreshToken,
		Scope:             identity.Scope,
		ExpiresAt:         identity.ExpiresAt,
		CreatedAt:         identity.CreatedAt,
		UpdatedAt:         identity.UpdatedAt,
	}
}

func (r *identityRecord) toDomain() core.ExternalIdentity {
	if r == nil {
		return core.ExternalIdentity{}
	}
	return core.ExternalIdentity{
		ID:                r.ID,
		UserID:            r.UserID,
		Provider:          r.Provider,
		ProviderAccountID: r.ProviderAccountID,
		AccessToken:       r.AccessToken,
		RefreshToken:      r.RefreshToken,
		Scope:             r.Scope,
		ExpiresAt:         r.ExpiresAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

type sessionRecord struct {
	bun.BaseModel `bun:"table:gateway_sessions,alias:gs"`

	ID               string    `bun:"id,pk"`
	UserID           string    `bun:"user_id,notnull"`
	TokenFingerprint string    `bun:"token_fingerprint,notnull"`
	ExpiresAt        time.Time `bun:"expires_at,notnull"`
	IPAddress        string    `bun:"ip_address"`
	UserAgent        string    `bun:"user_agent"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newSessionRecord(session core.Session) *sessionRecord {
	return &sessionRecord{
		ID:               session.ID,
		UserID:           session.UserID,
		TokenFingerprint: session.TokenFingerprint,
		ExpiresAt:        session.ExpiresAt,
		IPAddress:        session.IPAddress,
		UserAgent:        session.UserAgent,
		CreatedAt:        session.CreatedAt,
	}
}

func (r *sessionRecord) toDomain() core.Session {
	if r == nil {
		return core.Session{}
	}
	return core.Session{
		ID:               r.ID,
		UserID:           r.UserID,
		TokenFingerprint: r.TokenFingerprint,
		ExpiresAt:        r.ExpiresAt,
		IPAddress:        r.IPAddress,
		UserAgent:        r.UserAgent,
		CreatedAt:        r.CreatedAt,
	}
}

type linkRecord struct {
	bun.BaseModel `bun:"table:gateway_repository_links,alias:grl"`

	ID          string     `bun:"id,pk"`
	ProjectID   int64      `bun:"project_id,notnull,unique"`
	URL         string     `bun:"url,notnull,unique"`
	FullName    string     `bun:"full_name,notnull"`
	Stars       int        `bun:"stars,notnull"`
	Forks       int        `bun:"forks,notnull"`
	Watchers    int        `bun:"watchers,notnull"`
	Language    string     `bun:"language"`
	License     string     `bun:"license"`
	Private     bool       `bun:"private,notnull"`
	Fork        bool       `bun:"fork,notnull"`
	SyncEnabled bool       `bun:"sync_enabled,notnull"`
	SyncedAt    *time.Time `bun:"synced_at,nullzero"`
	SyncError   string     `bun:"sync_error"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newLinkRecord(link core.RepositoryLink) *linkRecord {
	return &linkRecord{
		ID:          link.ID,
		ProjectID:   link.ProjectID,
		URL:         link.URL,
		FullName:    link.FullName,
		Stars:       link.Stars,
		Forks:       link.Forks,
		Watchers:    link.Watchers,
		Language:    link.Language,
		License:     link.License,
		Private:     link.Private,
		Fork:        link.Fork,
		SyncEnabled: link.SyncEnabled,
		SyncedAt:    link.SyncedAt,
		SyncError:   link.SyncError,
		CreatedAt:   link.CreatedAt,
		UpdatedAt:   link.UpdatedAt,
	}
}

func (r *linkRecord) toDomain() core.RepositoryLink {
	if r == nil {
		return core.RepositoryLink{}
	}
	return core.RepositoryLink{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		URL:         r.URL,
		FullName:    r.FullName,
		Stars:       r.Stars,
		Forks:       r.Forks,
		Watchers:    r.Watchers,
		Language:    r.Language,
		License:     r.License,
		Private:     r.Private,
		Fork:        r.Fork,
		SyncEnabled: r.SyncEnabled,
		SyncedAt:    r.SyncedAt,
		SyncError:   r.SyncError,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
