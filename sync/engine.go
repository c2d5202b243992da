// Package sync copies remote repository metadata into linked rows. It
// performs no retries and no scheduling; callers decide when to run.
package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-identity-gateway/core"
	"github.com/goliatone/go-identity-gateway/repolink"
)

// ErrSyncDisabled marks links whose owner turned syncing off.
var ErrSyncDisabled = errors.New("sync: syncing is disabled for this link")

// RemoteClient is the slice of the hosting client the engine needs.
type RemoteClient interface {
	GetRepository(ctx context.Context, fullName string) (core.RepositoryMetadata, error)
	ListCommits(ctx context.Context, fullName string, limit int) ([]core.CommitRecord, error)
}

type Dependencies struct {
	Links          core.RepositoryLinkStore
	Remote         RemoteClient
	Logger         core.Logger
	LoggerProvider core.LoggerProvider
	Now            func() time.Time
}

type Engine struct {
	cfg    core.SyncConfig
	links  core.RepositoryLinkStore
	remote RemoteClient
	logger core.Logger
	now    func() time.Time
}

func NewEngine(cfg core.SyncConfig, deps Dependencies) (*Engine, error) {
	if deps.Links == nil {
		return nil, fmt.Errorf("sync: link store is required")
	}
	if deps.Remote == nil {
		return nil, fmt.Errorf("sync: remote client is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = core.DefaultSyncWorkers
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time {
			return time.Now().UTC()
		}
	}
	return &Engine{
		cfg:    cfg,
		links:  deps.Links,
		remote: deps.Remote,
		logger: core.ResolveLogger("sync", deps.LoggerProvider, deps.Logger),
		now:    now,
	}, nil
}

// SyncOne refreshes the cached metadata of a single link. Every
// attempt, failed or not, advances SyncedAt; failures additionally
// persist the classified error message before it is returned.
func (e *Engine) SyncOne(ctx context.Context, linkID string) (core.RepositoryLink, error) {
	if e == nil {
		return core.RepositoryLink{}, fmt.Errorf("sync: engine is nil")
	}
	link, found, err := e.links.GetByID(ctx, strings.TrimSpace(linkID))
	if err != nil {
		return core.RepositoryLink{}, err
	}
	if !found {
		missing := &repolink.Error{Kind: repolink.ErrLinkNotFound, Detail: linkID}
		core.LogOperation(ctx, e.logger, "sync_one", missing, map[string]any{"link_id": linkID})
		return core.RepositoryLink{}, missing
	}
	if !link.SyncEnabled {
		core.LogOperation(ctx, e.logger, "sync_one", ErrSyncDisabled, map[string]any{"link_id": link.ID})
		return link, ErrSyncDisabled
	}

	link, err = e.refresh(ctx, link)
	core.LogOperation(ctx, e.logger, "sync_one", err, map[string]any{
		"link_id":   link.ID,
		"full_name": link.FullName,
	})
	return link, err
}

// refresh performs the remote fetch and persists the outcome. The
// write happens on both paths so a stale row always shows when it was
// last attempted.
func (e *Engine) refresh(ctx context.Context, link core.RepositoryLink) (core.RepositoryLink, error) {
	now := e.now()
	metadata, fetchErr := e.remote.GetRepository(ctx, link.FullName)
	if fetchErr != nil {
		link.SyncError = fetchErr.Error()
		link.SyncedAt = &now
		link.UpdatedAt = now
		updated, persistErr := e.links.Update(ctx, link)
		if persistErr != nil {
			return link, errors.Join(fetchErr, fmt.Errorf("sync: persist failure state: %w", persistErr))
		}
		return updated, fetchErr
	}

	link.FullName = metadata.FullName
	link.Stars = metadata.Stars
	link.Forks = metadata.Forks
	link.Watchers = metadata.Watchers
	link.Language = metadata.Language
	link.License = metadata.License
	link.Private = metadata.Private
	link.Fork = metadata.Fork
	link.SyncError = ""
	link.SyncedAt = &now
	link.UpdatedAt = now
	return e.links.Update(ctx, link)
}

// SyncBulk refreshes many links through a bounded worker pool. One
// row comes back per requested id, in request order; a failing item
// never aborts its peers. Cancellation stops dispatching new items
// while in-flight ones run to completion.
func (e *Engine) SyncBulk(ctx context.Context, linkIDs []string) ([]core.SyncResult, error) {
	if e == nil {
		return nil, fmt.Errorf("sync: engine is nil")
	}
	if len(linkIDs) == 0 {
		return nil, goerrors.New("sync: at least one link id is required", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.GatewayErrorBadInput)
	}

	workers := e.cfg.Workers
	if workers > len(linkIDs) {
		workers = len(linkIDs)
	}

	type job struct {
		index  int
		linkID string
	}
	jobs := make(chan job)
	results := make([]core.SyncResult, len(linkIDs))

	var wg sync.WaitGroup
	wg.Add(workers)
	for worker := 0; worker < workers; worker++ {
		go func() {
			defer wg.Done()
			for item := range jobs {
				// A dispatch racing a cancellation can still hand the
				// worker an item; mark it canceled without touching the
				// store or the remote.
				if err := ctx.Err(); err != nil {
					results[item.index] = core.SyncResult{
						LinkID: item.linkID,
						Error:  err.Error(),
					}
					continue
				}
				results[item.index] = e.syncItem(ctx, item.linkID)
			}
		}()
	}

	dispatched := 0
dispatch:
	for index, linkID := range linkIDs {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- job{index: index, linkID: linkID}:
			dispatched++
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		for index := dispatched; index < len(linkIDs); index++ {
			results[index] = core.SyncResult{
				LinkID: linkIDs[index],
				Error:  err.Error(),
			}
		}
	}

	failures := 0
	for _, result := range results {
		if !result.Success {
			failures++
		}
	}
	core.LogOperation(ctx, e.logger, "sync_bulk", nil, map[string]any{
		"requested": len(linkIDs),
		"failed":    failures,
	})
	return results, nil
}

func (e *Engine) syncItem(ctx context.Context, linkID string) core.SyncResult {
	link, err := e.SyncOne(ctx, linkID)
	if err != nil {
		result := core.SyncResult{
			LinkID:    linkID,
			ProjectID: link.ProjectID,
			Error:     err.Error(),
		}
		if link.SyncedAt != nil {
			result.SyncedAt = link.SyncedAt
		}
		return result
	}
	return core.SyncResult{
		LinkID:    link.ID,
		ProjectID: link.ProjectID,
		Success:   true,
		SyncedAt:  link.SyncedAt,
	}
}

// Commits lists recent commits for a linked repository. Nothing is
// persisted; the listing passes straight through.
func (e *Engine) Commits(ctx context.Context, linkID string, limit int) ([]core.CommitRecord, error) {
	if e == nil {
		return nil, fmt.Errorf("sync: engine is nil")
	}
	link, found, err := e.links.GetByID(ctx, strings.TrimSpace(linkID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &repolink.Error{Kind: repolink.ErrLinkNotFound, Detail: linkID}
	}
	commits, err := e.remote.ListCommits(ctx, link.FullName, limit)
	core.LogOperation(ctx, e.logger, "commits", err, map[string]any{
		"link_id":   link.ID,
		"full_name": link.FullName,
	})
	return commits, err
}
