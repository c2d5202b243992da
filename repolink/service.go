// Package repolink manages the 1:1 binding between a project and one
// external repository.
package repolink

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-identity-gateway/core"
)

// DefaultHost is the hosting domain accepted when none is configured.
const DefaultHost = "github.com"

type Config struct {
	// Host restricts which hosting domain repository URLs may point at.
	Host string `koanf:"host" mapstructure:"host"`
}

type Dependencies struct {
	Links          core.RepositoryLinkStore
	Logger         core.Logger
	LoggerProvider core.LoggerProvider
	Now            func() time.Time
}

type Service struct {
	host   string
	links  core.RepositoryLinkStore
	logger core.Logger
	now    func() time.Time
}

func NewService(cfg Config, deps Dependencies) (*Service, error) {
	if deps.Links == nil {
		return nil, fmt.Errorf("repolink: link store is required")
	}
	host := strings.TrimSpace(strings.ToLower(cfg.Host))
	if host == "" {
		host = DefaultHost
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time {
			return time.Now().UTC()
		}
	}
	return &Service{
		host:   host,
		links:  deps.Links,
		logger: core.ResolveLogger("repolink", deps.LoggerProvider, deps.Logger),
		now:    now,
	}, nil
}

// Link binds a project to a repository URL. A project holds at most one
// link and a URL is linked at most once across all projects.
func (s *Service) Link(ctx context.Context, projectID int64, rawURL string, syncEnabled bool) (core.RepositoryLink, error) {
	if s == nil {
		return core.RepositoryLink{}, fmt.Errorf("repolink: service is nil")
	}
	normalized, fullName, err := s.normalizeURL(rawURL)
	if err != nil {
		core.LogOperation(ctx, s.logger, "link", err, map[string]any{"project_id": projectID})
		return core.RepositoryLink{}, err
	}

	if _, found, err := s.links.GetByProjectID(ctx, projectID); err != nil {
		return core.RepositoryLink{}, err
	} else if found {
		dup := linkError(ErrDuplicateLink, fmt.Sprintf("project %d already has a repository", projectID))
		core.LogOperation(ctx, s.logger, "link", dup, map[string]any{"project_id": projectID})
		return core.RepositoryLink{}, dup
	}
	if _, found, err := s.links.GetByURL(ctx, normalized); err != nil {
		return core.RepositoryLink{}, err
	} else if found {
		dup := linkError(ErrDuplicateLink, normalized)
		core.LogOperation(ctx, s.logger, "link", dup, map[string]any{"project_id": projectID})
		return core.RepositoryLink{}, dup
	}

	now := s.now()
	link := core.RepositoryLink{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		URL:         normalized,
		FullName:    fullName,
		SyncEnabled: syncEnabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	link, err = s.links.Create(ctx, link)
	core.LogOperation(ctx, s.logger, "link", err, map[string]any{
		"project_id": projectID,
		"full_name":  fullName,
	})
	return link, err
}

// Get returns the link bound to a project.
func (s *Service) Get(ctx context.Context, projectID int64) (core.RepositoryLink, error) {
	if s == nil {
		return core.RepositoryLink{}, fmt.Errorf("repolink: service is nil")
	}
	link, found, err := s.links.GetByProjectID(ctx, projectID)
	if err != nil {
		return core.RepositoryLink{}, err
	}
	if !found {
		return core.RepositoryLink{}, linkError(ErrLinkNotFound, fmt.Sprintf("project %d", projectID))
	}
	return link, nil
}

// GetByID returns a link by its row id.
func (s *Service) GetByID(ctx context.Context, id string) (core.RepositoryLink, error) {
	if s == nil {
		return core.RepositoryLink{}, fmt.Errorf("repolink: service is nil")
	}
	link, found, err := s.links.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.RepositoryLink{}, err
	}
	if !found {
		return core.RepositoryLink{}, linkError(ErrLinkNotFound, id)
	}
	return link, nil
}

// Update applies a patch to an existing link. Changing the URL
// re-validates it, re-derives the full name, and re-checks uniqueness
// against every link but this one.
func (s *Service) Update(ctx context.Context, id string, patch core.RepositoryLinkPatch) (core.RepositoryLink, error) {
	if s == nil {
		return core.RepositoryLink{}, fmt.Errorf("repolink: service is nil")
	}
	link, err := s.GetByID(ctx, id)
	if err != nil {
		return core.RepositoryLink{}, err
	}

	if patch.URL != nil {
		normalized, fullName, err := s.normalizeURL(*patch.URL)
		if err != nil {
			core.LogOperation(ctx, s.logger, "update_link", err, map[string]any{"link_id": link.ID})
			return core.RepositoryLink{}, err
		}
		if normalized != link.URL {
			if other, found, err := s.links.GetByURL(ctx, normalized); err != nil {
				return core.RepositoryLink{}, err
			} else if found && other.ID != link.ID {
				dup := linkError(ErrDuplicateLink, normalized)
				core.LogOperation(ctx, s.logger, "update_link", dup, map[string]any{"link_id": link.ID})
				return core.RepositoryLink{}, dup
			}
		}
		link.URL = normalized
		link.FullName = fullName
	}
	if patch.FullName != nil && strings.TrimSpace(*patch.FullName) != "" {
		link.FullName = strings.TrimSpace(*patch.FullName)
	}
	if patch.SyncEnabled != nil {
		link.SyncEnabled = *patch.SyncEnabled
	}
	link.UpdatedAt = s.now()

	link, err = s.links.Update(ctx, link)
	core.LogOperation(ctx, s.logger, "update_link", err, map[string]any{"link_id": link.ID})
	return link, err
}

// Unlink removes the binding. Cached metadata goes with the row; the
// remote repository is untouched.
func (s *Service) Unlink(ctx context.Context, projectID int64) error {
	if s == nil {
		return fmt.Errorf("repolink: service is nil")
	}
	link, err := s.Get(ctx, projectID)
	if err != nil {
		return err
	}
	err = s.links.Delete(ctx, link.ID)
	core.LogOperation(ctx, s.logger, "unlink", err, map[string]any{
		"project_id": projectID,
		"link_id":    link.ID,
	})
	return err
}

func (s *Service) normalizeURL(rawURL string) (string, string, error) {
	normalized := strings.TrimRight(strings.TrimSpace(rawURL), "/")
	fullName, err := deriveFullName(normalized, s.host)
	if err != nil {
		return "", "", err
	}
	return normalized, fullName, nil
}

// DeriveFullName extracts "owner/name" from a repository URL on the
// default host.
func DeriveFullName(rawURL string) (string, error) {
	return deriveFullName(strings.TrimRight(strings.TrimSpace(rawURL), "/"), DefaultHost)
}

func deriveFullName(rawURL string, host string) (string, error) {
	if rawURL == "" {
		return "", linkError(ErrInvalidRepositoryURL, "url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", linkError(ErrInvalidRepositoryURL, rawURL)
	}
	if parsed.Scheme != "https" {
		return "", linkError(ErrInvalidRepositoryURL, rawURL)
	}
	if !strings.EqualFold(parsed.Host, host) {
		return "", linkError(ErrInvalidRepositoryURL, fmt.Sprintf("host must be %s", host))
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) != 2 || segments[0] == "" || segments[1] == "" {
		return "", linkError(ErrInvalidRepositoryURL, rawURL)
	}
	name := strings.TrimSuffix(segments[1], ".git")
	if name == "" {
		return "", linkError(ErrInvalidRepositoryURL, rawURL)
	}
	return segments[0] + "/" + name, nil
}
