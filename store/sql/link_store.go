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

type LinkStore struct {
	db    *bun.DB
	links repository.Repository[*linkRecord]
}

func NewLinkStore(db *bun.DB) (*LinkStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &LinkStore{
		db:    db,
		links: repository.NewRepository[*linkRecord](db, linkHandlers()),
	}, nil
}

func (s *LinkStore) Create(ctx context.Context, link core.RepositoryLink) (core.RepositoryLink, error) {
	if s == nil || s.links == nil {
		return core.RepositoryLink{}, fmt.Errorf("sqlstore: link store is not configured")
	}
	if strings.TrimSpace(link.ID) == "" {
		return core.RepositoryLink{}, fmt.Errorf("sqlstore: link id is required")
	}
	created, err := s.links.Create(ctx, newLinkRecord(link))
	if err != nil {
		return core.RepositoryLink{}, err
	}
	return created.toDomain(), nil
}

func (s *LinkStore) GetByProjectID(ctx context.Context, projectID int64) (core.RepositoryLink, bool, error) {
	return s.selectOne(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.project_id = ?", projectID)
	})
}

func (s *LinkStore) GetByID(ctx context.Context, id string) (core.RepositoryLink, bool, error) {
	return s.selectOne(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.id = ?", strings.TrimSpace(id))
	})
}

func (s *LinkStore) GetByURL(ctx context.Context, url string) (core.RepositoryLink, bool, error) {
	return s.selectOne(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.url = ?", strings.TrimSpace(url))
	})
}

// Update overwrites the row. The WHERE clause pins the previous
// updated_at so two concurrent syncs cannot silently clobber each
// other; the loser sees no rows and retries through a fresh read.
func (s *LinkStore) Update(ctx context.Context, link core.RepositoryLink) (core.RepositoryLink, error) {
	if s == nil || s.db == nil {
		return core.RepositoryLink{}, fmt.Errorf("sqlstore: link store is not configured")
	}
	current, found, err := s.GetByID(ctx, link.ID)
	if err != nil {
		return core.RepositoryLink{}, err
	}
	if !found {
		return core.RepositoryLink{}, fmt.Errorf("sqlstore: link %q not found", link.ID)
	}

	record := newLinkRecord(link)
	result, err := s.db.NewUpdate().
		Model(record).
		WherePK().
		Where("?TableAlias.updated_at = ?", current.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return core.RepositoryLink{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.RepositoryLink{}, err
	}
	if affected == 0 {
		return core.RepositoryLink{}, fmt.Errorf("sqlstore: link %q was modified concurrently", link.ID)
	}
	return record.toDomain(), nil
}

func (s *LinkStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: link store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*linkRecord)(nil)).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	return err
}

func (s *LinkStore) selectOne(ctx context.Context, where func(*bun.SelectQuery) *bun.SelectQuery) (core.RepositoryLink, bool, error) {
	if s == nil || s.db == nil {
		return core.RepositoryLink{}, false, fmt.Errorf("sqlstore: link store is not configured")
	}
	record := &linkRecord{}
	err := where(s.db.NewSelect().Model(record)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.RepositoryLink{}, false, nil
		}
		return core.RepositoryLink{}, false, err
	}
	return record.toDomain(), true, nil
}
