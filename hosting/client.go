// Package hosting talks to the external repository hosting REST API
// and classifies every failure so callers can react without parsing
// remote error bodies.
package hosting

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-identity-gateway/core"
)

const (
	// MaxCommitPageSize is the largest page the remote API serves.
	MaxCommitPageSize = 100

	maxResponseBytes = 1 << 20 // 1 MiB
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	baseURL   string
	token     string
	userAgent string
	client    HTTPDoer
}

// NewClient builds a hosting client from config. The token is optional;
// without it the client reads public repositories only.
func NewClient(cfg core.HostingConfig, client HTTPDoer) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("hosting: base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = core.DefaultRemoteTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = "identity-gateway/1.0"
	}
	return &Client{
		baseURL:   baseURL,
		token:     strings.TrimSpace(cfg.Token),
		userAgent: userAgent,
		client:    client,
	}, nil
}

type repositoryPayload struct {
	FullName        string `json:"full_name"`
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
	WatchersCount   int    `json:"watchers_count"`
	Language        string `json:"language"`
	License         *struct {
		SPDXID string `json:"spdx_id"`
		Name   string `json:"name"`
	} `json:"license"`
	Private bool `json:"private"`
	Fork    bool `json:"fork"`
}

type commitPayload struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name  string    `json:"name"`
			Email string    `json:"email"`
			Date  time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	HTMLURL string `json:"html_url"`
}

// GetRepository fetches current metadata for "owner/name".
func (c *Client) GetRepository(ctx context.Context, fullName string) (core.RepositoryMetadata, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return core.RepositoryMetadata{}, &NotFoundError{FullName: fullName}
	}

	var payload repositoryPayload
	if err := c.getJSON(ctx, "/repos/"+fullName, fullName, &payload); err != nil {
		return core.RepositoryMetadata{}, err
	}

	metadata := core.RepositoryMetadata{
		FullName: payload.FullName,
		Stars:    payload.StargazersCount,
		Forks:    payload.ForksCount,
		Watchers: payload.WatchersCount,
		Language: payload.Language,
		Private:  payload.Private,
		Fork:     payload.Fork,
	}
	if metadata.FullName == "" {
		metadata.FullName = fullName
	}
	if payload.License != nil {
		metadata.License = payload.License.SPDXID
		if metadata.License == "" || metadata.License == "NOASSERTION" {
			metadata.License = payload.License.Name
		}
	}
	return metadata, nil
}

// ListCommits returns the most recent commits, newest first. The limit
// is clamped to the remote's page cap; pagination is out of scope.
func (c *Client) ListCommits(ctx context.Context, fullName string, limit int) ([]core.CommitRecord, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, &NotFoundError{FullName: fullName}
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > MaxCommitPageSize {
		limit = MaxCommitPageSize
	}

	var payload []commitPayload
	path := "/repos/" + fullName + "/commits?per_page=" + strconv.Itoa(limit)
	if err := c.getJSON(ctx, path, fullName, &payload); err != nil {
		return nil, err
	}

	commits := make([]core.CommitRecord, 0, len(payload))
	for _, item := range payload {
		commits = append(commits, core.CommitRecord{
			SHA:         item.SHA,
			Message:     item.Commit.Message,
			AuthorName:  item.Commit.Author.Name,
			AuthorEmail: item.Commit.Author.Email,
			Date:        item.Commit.Author.Date,
			URL:         item.HTMLURL,
		})
	}
	return commits, nil
}

// CheckAccess probes whether the repository is reachable with the
// configured credentials. It never returns an error; any failure is
// simply no access.
func (c *Client) CheckAccess(ctx context.Context, fullName string) bool {
	if c == nil {
		return false
	}
	_, err := c.GetRepository(ctx, fullName)
	return err == nil
}

func (c *Client) getJSON(ctx context.Context, path string, fullName string, out any) error {
	if c == nil {
		return &TransientError{FullName: fullName, Cause: fmt.Errorf("client is nil")}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &TransientError{FullName: fullName, Cause: err}
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransientError{FullName: fullName, Cause: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &TransientError{FullName: fullName, Cause: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := json.Unmarshal(body, out); err != nil {
			return &TransientError{FullName: fullName, Cause: err}
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{FullName: fullName}
	case isRateLimited(resp, body):
		return &RateLimitedError{FullName: fullName, Status: resp.StatusCode}
	default:
		return &TransientError{FullName: fullName, Status: resp.StatusCode}
	}
}

// isRateLimited recognizes both the dedicated 429 status and the 403
// quota refusal the remote API historically uses.
func isRateLimited(resp *http.Response, body []byte) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if resp.StatusCode != http.StatusForbidden {
		return false
	}
	if strings.TrimSpace(resp.Header.Get("x-ratelimit-remaining")) == "0" {
		return true
	}
	return strings.Contains(strings.ToLower(string(body)), "rate limit")
}
