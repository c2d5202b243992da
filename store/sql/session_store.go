package sqlstore

import (
	"context"
	"fmt"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-identity-gateway/core"
)

type SessionStore struct {
	db       *bun.DB
	sessions repository.Repository[*sessionRecord]
}

func NewSessionStore(db *bun.DB) (*SessionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &SessionStore{
		db:       db,
		sessions: repository.NewRepository[*sessionRecord](db, sessionHandlers()),
	}, nil
}

func (s *SessionStore) Create(ctx context.Context, session core.Session) (core.Session, error) {
	if s == nil || s.sessions == nil {
		return core.Session{}, fmt.Errorf("sqlstore: session store is not configured")
	}
	if strings.TrimSpace(session.ID) == "" {
		return core.Session{}, fmt.Errorf("sqlstore: session id is required")
	}
	if strings.TrimSpace(session.UserID) == "" {
		return core.Session{}, fmt.Errorf("sqlstore: session user id is required")
	}
	created, err := s.sessions.Create(ctx, newSessionRecord(session))
	if err != nil {
		return core.Session{}, err
	}
	return created.toDomain(), nil
}

func (s *SessionStore) DeleteAllForUser(ctx context.Context, userID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: session store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("sqlstore: user id is required")
	}
	_, err := s.db.NewDelete().
		Model((*sessionRecord)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Exec(ctx)
	return err
}
