package repolink

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-identity-gateway/core"
)

type fakeLinkStore struct {
	links map[string]core.RepositoryLink
}

func newFakeLinkStore() *fakeLinkStore {
	return &fakeLinkStore{links: map[string]core.RepositoryLink{}}
}

func (s *fakeLinkStore) Create(_ context.Context, link core.RepositoryLink) (core.RepositoryLink, error) {
	s.links[link.ID] = link
	return link, nil
}

func (s *fakeLinkStore) GetByProjectID(_ context.Context, projectID int64) (core.RepositoryLink, bool, error) {
	for _, link := range s.links {
		if link.ProjectID == projectID {
			return link, true, nil
		}
	}
	return core.RepositoryLink{}, false, nil
}

func (s *fakeLinkStore) GetByID(_ context.Context, id string) (core.RepositoryLink, bool, error) {
	link, ok := s.links[id]
	return link, ok, nil
}

func (s *fakeLinkStore) GetByURL(_ context.Context, url string) (core.RepositoryLink, bool, error) {
	for _, link := range s.links {
		if link.URL == url {
			return link, true, nil
		}
	}
	return core.RepositoryLink{}, false, nil
}

func (s *fakeLinkStore) Update(_ context.Context, link core.RepositoryLink) (core.RepositoryLink, error) {
	s.links[link.ID] = link
	return link, nil
}

func (s *fakeLinkStore) Delete(_ context.Context, id string) error {
	delete(s.links, id)
	return nil
}

func newTestService(t *testing.T, store *fakeLinkStore) *Service {
	t.Helper()
	service, err := NewService(Config{}, Dependencies{Links: store})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestService_LinkDerivesFullName(t *testing.T) {
	store := newFakeLinkStore()
	service := newTestService(t, store)

	link, err := service.Link(context.Background(), 7, "https://github.com/goliatone/go-services/", true)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if link.FullName != "goliatone/go-services" {
		t.Fatalf("expected derived full name, got %q", link.FullName)
	}
	if link.URL != "https://github.com/goliatone/go-services" {
		t.Fatalf("expected trailing slash trimmed, got %q", link.URL)
	}
	if !link.SyncEnabled {
		t.Fatal("expected sync enabled as requested")
	}
}

func TestService_LinkHonorsSyncEnabledFlag(t *testing.T) {
	store := newFakeLinkStore()
	service := newTestService(t, store)

	link, err := service.Link(context.Background(), 7, "https://github.com/owner/quiet", false)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if link.SyncEnabled {
		t.Fatal("expected link created with sync disabled")
	}
	stored, _, _ := store.GetByID(context.Background(), link.ID)
	if stored.SyncEnabled {
		t.Fatal("expected disabled flag persisted")
	}
}

func TestService_LinkRejectsForeignHost(t *testing.T) {
	service := newTestService(t, newFakeLinkStore())

	cases := []string{
		"https://gitlab.com/owner/repo",
		"http://github.com/owner/repo",
		"https://github.com/owner",
		"https://github.com/owner/repo/tree/main",
		"",
		"not a url",
	}
	for _, raw := range cases {
		if _, err := service.Link(context.Background(), 7, raw, true); !errors.Is(err, ErrInvalidRepositoryURL) {
			t.Fatalf("url %q: expected ErrInvalidRepositoryURL, got %v", raw, err)
		}
	}
}

func TestService_LinkRejectsSecondLinkForProject(t *testing.T) {
	service := newTestService(t, newFakeLinkStore())

	if _, err := service.Link(context.Background(), 7, "https://github.com/owner/first", true); err != nil {
		t.Fatalf("first link: %v", err)
	}
	if _, err := service.Link(context.Background(), 7, "https://github.com/owner/second", true); !errors.Is(err, ErrDuplicateLink) {
		t.Fatalf("expected ErrDuplicateLink, got %v", err)
	}
}

func TestService_LinkRejectsURLLinkedElsewhere(t *testing.T) {
	service := newTestService(t, newFakeLinkStore())

	if _, err := service.Link(context.Background(), 7, "https://github.com/owner/repo", true); err != nil {
		t.Fatalf("first link: %v", err)
	}
	if _, err := service.Link(context.Background(), 8, "https://github.com/owner/repo", true); !errors.Is(err, ErrDuplicateLink) {
		t.Fatalf("expected ErrDuplicateLink, got %v", err)
	}
}

func TestService_GetMissingLink(t *testing.T) {
	service := newTestService(t, newFakeLinkStore())

	if _, err := service.Get(context.Background(), 404); !errors.Is(err, ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}

func TestService_UpdateRederivesFullName(t *testing.T) {
	store := newFakeLinkStore()
	service := newTestService(t, store)

	link, err := service.Link(context.Background(), 7, "https://github.com/owner/old", true)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	newURL := "https://github.com/owner/new"
	updated, err := service.Update(context.Background(), link.ID, core.RepositoryLinkPatch{URL: &newURL})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.FullName != "owner/new" {
		t.Fatalf("expected re-derived full name, got %q", updated.FullName)
	}
	if !updated.UpdatedAt.After(link.UpdatedAt) && !updated.UpdatedAt.Equal(link.UpdatedAt) {
		t.Fatalf("expected updated_at to advance")
	}
}

func TestService_UpdateChecksUniquenessExcludingSelf(t *testing.T) {
	service := newTestService(t, newFakeLinkStore())

	link, err := service.Link(context.Background(), 7, "https://github.com/owner/repo", true)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if _, err := service.Link(context.Background(), 8, "https://github.com/owner/other", true); err != nil {
		t.Fatalf("second link: %v", err)
	}

	sameURL := link.URL
	if _, err := service.Update(context.Background(), link.ID, core.RepositoryLinkPatch{URL: &sameURL}); err != nil {
		t.Fatalf("expected self URL to be allowed, got %v", err)
	}

	takenURL := "https://github.com/owner/other"
	if _, err := service.Update(context.Background(), link.ID, core.RepositoryLinkPatch{URL: &takenURL}); !errors.Is(err, ErrDuplicateLink) {
		t.Fatalf("expected ErrDuplicateLink, got %v", err)
	}
}

func TestService_UpdateTogglesSyncEnabled(t *testing.T) {
	service := newTestService(t, newFakeLinkStore())

	link, err := service.Link(context.Background(), 7, "https://github.com/owner/repo", true)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	disabled := false
	updated, err := service.Update(context.Background(), link.ID, core.RepositoryLinkPatch{SyncEnabled: &disabled})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.SyncEnabled {
		t.Fatal("expected sync to be disabled")
	}
}

func TestService_UnlinkRemovesRow(t *testing.T) {
	store := newFakeLinkStore()
	service := newTestService(t, store)

	if _, err := service.Link(context.Background(), 7, "https://github.com/owner/repo", true); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := service.Unlink(context.Background(), 7); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if len(store.links) != 0 {
		t.Fatalf("expected link deleted, %d left", len(store.links))
	}
	if err := service.Unlink(context.Background(), 7); !errors.Is(err, ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}

func TestDeriveFullName(t *testing.T) {
	got, err := DeriveFullName("https://github.com/owner/repo.git")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if got != "owner/repo" {
		t.Fatalf("expected .git suffix trimmed, got %q", got)
	}
	if _, err := DeriveFullName("https://example.com/owner/repo"); !errors.Is(err, ErrInvalidRepositoryURL) {
		t.Fatalf("expected ErrInvalidRepositoryURL, got %v", err)
	}
}
