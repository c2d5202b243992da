package core

import (
	"strings"
	"time"
)

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

const (
	ProviderGitHub = "github"
	ProviderGoogle = "google"
	ProviderKakao  = "kakao"
)

// User is the canonical account for a person regardless of how many
// identity providers are linked to it. Rows are never deleted by the
// gateway.
type User struct {
	ID             string
	Email          string
	Name           string
	Username       string
	AvatarURL      string
	GithubUsername string
	HashedPassword string
	Role           UserRole
	Verified       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ExternalIdentity binds one provider account to a canonical user. The
// (Provider, ProviderAccountID) pair is globally unique.
type ExternalIdentity struct {
	ID                string
	UserID            string
	Provider          string
	ProviderAccountID string
	AccessToken       string
	RefreshToken      string
	Scope             string
	ExpiresAt         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Session records an issued bearer token. Only a fingerprint of the
// token is stored, never the token itself.
type Session struct {
	ID               string
	UserID           string
	TokenFingerprint string
	ExpiresAt        time.Time
	IPAddress        string
	UserAgent        string
	CreatedAt        time.Time
}

// ClientContext carries request attribution captured at login.
type ClientContext struct {
	IPAddress string
	UserAgent string
}

// RepositoryLink is the 1:1 binding between a project and one external
// repository plus its cached remote metadata. Stat fields are written
// only by the sync engine.
type RepositoryLink struct {
	ID          string
	ProjectID   int64
	URL         string
	FullName    string
	Stars       int
	Forks       int
	Watchers    int
	Language    string
	License     string
	Private     bool
	Fork        bool
	SyncEnabled bool
	SyncedAt    *time.Time
	SyncError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RepositoryLinkPatch mutates a link in place. Nil fields are left
// untouched.
type RepositoryLinkPatch struct {
	URL         *string
	FullName    *string
	SyncEnabled *bool
}

// RepositoryMetadata is the remote shape a sync run copies into a link.
type RepositoryMetadata struct {
	FullName string
	Stars    int
	Forks    int
	Watchers int
	Language string
	License  string
	Private  bool
	Fork     bool
}

// CommitRecord is produced on demand from the remote commit listing and
// never persisted.
type CommitRecord struct {
	SHA         string
	Message     string
	AuthorName  string
	AuthorEmail string
	Date        time.Time
	URL         string
}

// SyncResult is one row of a bulk sync outcome. A failed item carries
// the classified error message and never aborts its peers.
type SyncResult struct {
	LinkID    string
	ProjectID int64
	Success   bool
	Error     string
	SyncedAt  *time.Time
}

func NormalizeProvider(value string) string {
	return strings.TrimSpace(strings.ToLower(value))
}

func KnownProvider(provider string) bool {
	switch NormalizeProvider(provider) {
	case ProviderGitHub, ProviderGoogle, ProviderKakao:
		return true
	default:
		return false
	}
}
