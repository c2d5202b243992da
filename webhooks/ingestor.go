// Package webhooks ingests push notifications from the hosting
// provider and turns them into resyncs of the matching link.
package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-identity-gateway/core"
	"github.com/goliatone/go-identity-gateway/repolink"
)

// SignatureHeader carries the hex HMAC-SHA256 digest of the payload.
const SignatureHeader = "x-hub-signature-256"

type InboundRequest struct {
	Headers map[string]string
	Body    []byte
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Metadata   map[string]any
}

// Resyncer is the slice of the sync engine an ingestor drives.
type Resyncer interface {
	SyncOne(ctx context.Context, linkID string) (core.RepositoryLink, error)
}

type Dependencies struct {
	Links  core.RepositoryLinkStore
	Engine Resyncer
	// Host is the hosting domain used to rebuild a repository URL when
	// a delivery only carries the bare full name.
	Host           string
	Logger         core.Logger
	LoggerProvider core.LoggerProvider
	Now            func() time.Time
}

type Ingestor struct {
	secret []byte
	host   string
	links  core.RepositoryLinkStore
	engine Resyncer
	logger core.Logger
}

func NewIngestor(cfg core.WebhookConfig, deps Dependencies) (*Ingestor, error) {
	if deps.Links == nil {
		return nil, fmt.Errorf("webhooks: link store is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("webhooks: sync engine is required")
	}
	var secret []byte
	if trimmed := strings.TrimSpace(cfg.Secret); trimmed != "" {
		secret = []byte(trimmed)
	}
	host := strings.TrimSpace(strings.ToLower(deps.Host))
	if host == "" {
		host = repolink.DefaultHost
	}
	return &Ingestor{
		secret: secret,
		host:   host,
		links:  deps.Links,
		engine: deps.Engine,
		logger: core.ResolveLogger("webhooks", deps.LoggerProvider, deps.Logger),
	}, nil
}

type pushPayload struct {
	Repository struct {
		FullName string `json:"full_name"`
		HTMLURL  string `json:"html_url"`
		CloneURL string `json:"clone_url"`
	} `json:"repository"`
}

// Receive verifies, parses, and acts on one delivery. Only signature
// failures and malformed payloads are rejected; an unknown repository
// or a failing resync is still acknowledged so the sender does not
// redeliver, with the detail carried in the result metadata.
func (i *Ingestor) Receive(ctx context.Context, req InboundRequest) (InboundResult, error) {
	if i == nil {
		return InboundResult{}, fmt.Errorf("webhooks: ingestor is nil")
	}

	if len(i.secret) > 0 {
		if err := i.verifySignature(req); err != nil {
			core.LogOperation(ctx, i.logger, "receive", err, nil)
			return InboundResult{
				StatusCode: http.StatusUnauthorized,
				Metadata:   map[string]any{"rejected": true},
			}, err
		}
	}

	var payload pushPayload
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		parseErr := fmt.Errorf("webhooks: malformed payload: %w", err)
		core.LogOperation(ctx, i.logger, "receive", parseErr, nil)
		return InboundResult{
			StatusCode: http.StatusBadRequest,
			Metadata:   map[string]any{"rejected": true},
		}, parseErr
	}

	repoURL := strings.TrimRight(strings.TrimSpace(payload.Repository.HTMLURL), "/")
	fullName := strings.TrimSpace(payload.Repository.FullName)
	metadata := map[string]any{
		"full_name": fullName,
	}

	if repoURL == "" && fullName == "" {
		metadata["linked"] = false
		return i.acknowledge(ctx, metadata), nil
	}

	link, found, err := i.resolveLink(ctx, repoURL, fullName)
	if err != nil {
		core.LogOperation(ctx, i.logger, "receive", err, metadata)
		return InboundResult{}, err
	}
	if !found {
		metadata["linked"] = false
		core.LogOperation(ctx, i.logger, "receive", nil, metadata)
		return i.acknowledge(ctx, metadata), nil
	}

	metadata["linked"] = true
	metadata["link_id"] = link.ID
	if _, syncErr := i.engine.SyncOne(ctx, link.ID); syncErr != nil {
		metadata["synced"] = false
		metadata["sync_error"] = syncErr.Error()
	} else {
		metadata["synced"] = true
	}
	core.LogOperation(ctx, i.logger, "receive", nil, metadata)
	return i.acknowledge(ctx, metadata), nil
}

func (i *Ingestor) acknowledge(_ context.Context, metadata map[string]any) InboundResult {
	return InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata:   metadata,
	}
}

func (i *Ingestor) resolveLink(ctx context.Context, repoURL string, fullName string) (core.RepositoryLink, bool, error) {
	if repoURL != "" {
		link, found, err := i.links.GetByURL(ctx, repoURL)
		if err != nil || found {
			return link, found, err
		}
	}
	if fullName != "" {
		link, found, err := i.links.GetByURL(ctx, "https://"+i.host+"/"+fullName)
		if err != nil || found {
			return link, found, err
		}
	}
	return core.RepositoryLink{}, false, nil
}

func (i *Ingestor) verifySignature(req InboundRequest) error {
	provided := headerValue(req.Headers, SignatureHeader)
	if provided == "" {
		return fmt.Errorf("webhooks: missing %s header", SignatureHeader)
	}
	provided = strings.TrimPrefix(strings.ToLower(provided), "sha256=")

	mac := hmac.New(sha256.New, i.secret)
	mac.Write(req.Body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(provided), []byte(expected)) {
		return fmt.Errorf("webhooks: signature mismatch")
	}
	return nil
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
