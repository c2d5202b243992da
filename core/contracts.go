package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

// UserStore is the persistence boundary for canonical users and their
// linked provider identities. Transactions are the store's concern.
type UserStore interface {
	FindByID(ctx context.Context, id string) (User, bool, error)
	FindByEmail(ctx context.Context, email string) (User, bool, error)
	Upsert(ctx context.Context, user User) (User, error)
	FindIdentity(ctx context.Context, provider string, providerAccountID string) (ExternalIdentity, bool, error)
	SaveIdentity(ctx context.Context, identity ExternalIdentity) (ExternalIdentity, error)
}

// SessionStore persists issued sessions. Logout removes every session
// for the user, not a single device.
type SessionStore interface {
	Create(ctx context.Context, session Session) (Session, error)
	DeleteAllForUser(ctx context.Context, userID string) error
}

// RepositoryLinkStore persists project<->repository bindings.
type RepositoryLinkStore interface {
	Create(ctx context.Context, link RepositoryLink) (RepositoryLink, error)
	GetByProjectID(ctx context.Context, projectID int64) (RepositoryLink, bool, error)
	GetByID(ctx context.Context, id string) (RepositoryLink, bool, error)
	GetByURL(ctx context.Context, url string) (RepositoryLink, bool, error)
	Update(ctx context.Context, link RepositoryLink) (RepositoryLink, error)
	Delete(ctx context.Context, id string) error
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider
