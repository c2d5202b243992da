// Package sqlstore implements the gateway store contracts on bun.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-identity-gateway/core"
)

type UserStore struct {
	db         *bun.DB
	users      repository.Repository[*userRecord]
	identities repository.Repository[*identityRecord]
}

func NewUserStore(db *bun.DB) (*UserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &UserStore{
		db:         db,
		users:      repository.NewRepository[*userRecord](db, userHandlers()),
		identities: repository.NewRepository[*identityRecord](db, identityHandlers()),
	}, nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (core.User, bool, error) {
	if s == nil || s.db == nil {
		return core.User{}, false, fmt.Errorf("sqlstore: user store is not configured")
	}
	record := &userRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.User{}, false, nil
		}
		return core.User{}, false, err
	}
	return record.toDomain(), true, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (core.User, bool, error) {
	if s == nil || s.db == nil {
		return core.User{}, false, fmt.Errorf("sqlstore: user store is not configured")
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return core.User{}, false, nil
	}
	record := &userRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("lower(?TableAlias.email) = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.User{}, false, nil
		}
		return core.User{}, false, err
	}
	return record.toDomain(), true, nil
}

// Upsert writes the user by id, inserting on first sight and fully
// overwriting the row afterwards.
func (s *UserStore) Upsert(ctx context.Context, user core.User) (core.User, error) {
	if s == nil || s.users == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	if strings.TrimSpace(user.ID) == "" {
		return core.User{}, fmt.Errorf("sqlstore: user id is required")
	}

	_, exists, err := s.FindByID(ctx, user.ID)
	if err != nil {
		return core.User{}, err
	}

	record := newUserRecord(user)
	if exists {
		updated, err := s.users.Update(ctx, record, repository.UpdateByID(user.ID))
		if err != nil {
			return core.User{}, err
		}
		return updated.toDomain(), nil
	}
	created, err := s.users.Create(ctx, record)
	if err != nil {
		return core.User{}, err
	}
	return created.toDomain(), nil
}

func (s *UserStore) FindIdentity(ctx context.Context, provider string, providerAccountID string) (core.ExternalIdentity, bool, error) {
	if s == nil || s.db == nil {
		return core.ExternalIdentity{}, false, fmt.Errorf("sqlstore: user store is not configured")
	}
	record := &identityRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider = ?", core.NormalizeProvider(provider)).
		Where("?TableAlias.provider_account_id = ?", strings.TrimSpace(providerAccountID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.ExternalIdentity{}, false, nil
		}
		return core.ExternalIdentity{}, false, err
	}
	return record.toDomain(), true, nil
}

// SaveIdentity upserts on the (provider, provider account id) pair so
// a relogin refreshes the stored provider tokens in place.
func (s *UserStore) SaveIdentity(ctx context.Context, identity core.ExternalIdentity) (core.ExternalIdentity, error) {
	if s == nil || s.identities == nil {
		return core.ExternalIdentity{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	identity.Provider = core.NormalizeProvider(identity.Provider)

	existing, found, err := s.FindIdentity(ctx, identity.Provider, identity.ProviderAccountID)
	if err != nil {
		return core.ExternalIdentity{}, err
	}

	if found {
		identity.ID = existing.ID
		identity.CreatedAt = existing.CreatedAt
		updated, err := s.identities.Update(ctx, newIdentityRecord(identity), repository.UpdateByID(existing.ID))
		if err != nil {
			return core.ExternalIdentity{}, err
		}
		return updated.toDomain(), nil
	}

	created, err := s.identities.Create(ctx, newIdentityRecord(identity))
	if err != nil {
		return core.ExternalIdentity{}, err
	}
	return created.toDomain(), nil
}
