package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type tokenEndpointPayload struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	RefreshToken     string `json:"refresh_token"`
	Scope            string `json:"scope"`
	ExpiresIn        int64  `json:"expires_in"`
	ErrorCode        string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ExchangeRequest is a form-encoded POST against a provider token
// endpoint. Extra headers let variants add provider-specific Accept or
// User-Agent values.
type ExchangeRequest struct {
	TokenURL string
	Form     url.Values
	Headers  map[string]string
}

// ExchangeCode runs the code-for-token exchange shared by every
// variant. Any non-2xx response, provider error payload, or missing
// access token surfaces as an *ExchangeError.
func ExchangeCode(ctx context.Context, client HTTPDoer, provider string, req ExchangeRequest) (ProviderToken, error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultRequestTimeout}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	tokenURL := strings.TrimSpace(req.TokenURL)
	if tokenURL == "" {
		return ProviderToken{}, &ExchangeError{Provider: provider, Cause: fmt.Errorf("token url is required")}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(req.Form.Encode()))
	if err != nil {
		return ProviderToken{}, &ExchangeError{Provider: provider, Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	for key, value := range req.Headers {
		if strings.TrimSpace(key) != "" {
			httpReq.Header.Set(key, value)
		}
	}

	res, err := client.Do(httpReq)
	if err != nil {
		return ProviderToken{}, &ExchangeError{Provider: provider, Cause: err}
	}
	defer res.Body.Close()

	body, err := readLimitedBody(res.Body)
	if err != nil {
		return ProviderToken{}, &ExchangeError{Provider: provider, Cause: err}
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return ProviderToken{}, &ExchangeError{
			Provider: provider,
			Cause:    fmt.Errorf("token endpoint returned status %d: %s", res.StatusCode, compactBody(body)),
		}
	}

	payload := tokenEndpointPayload{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ProviderToken{}, &ExchangeError{Provider: provider, Cause: fmt.Errorf("decode token response: %w", err)}
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		cause := fmt.Errorf("token response has no access token")
		if description := strings.TrimSpace(payload.ErrorDescription); description != "" {
			cause = fmt.Errorf("%s", description)
		} else if code := strings.TrimSpace(payload.ErrorCode); code != "" {
			cause = fmt.Errorf("provider returned error %q", code)
		}
		return ProviderToken{}, &ExchangeError{Provider: provider, Cause: cause}
	}

	return ProviderToken{
		AccessToken:  strings.TrimSpace(payload.AccessToken),
		TokenType:    strings.TrimSpace(payload.TokenType),
		RefreshToken: strings.TrimSpace(payload.RefreshToken),
		Scope:        strings.TrimSpace(payload.Scope),
		ExpiresIn:    payload.ExpiresIn,
	}, nil
}

// GetJSON performs an authenticated GET against a provider profile
// endpoint and decodes the body when the status is 2xx. The status code
// is returned either way so variants can branch into their fallbacks.
func GetJSON(ctx context.Context, client HTTPDoer, endpoint string, headers map[string]string, out any) (int, error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultRequestTimeout}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(endpoint), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		if strings.TrimSpace(key) != "" {
			req.Header.Set(key, value)
		}
	}

	res, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	body, err := readLimitedBody(res.Body)
	if err != nil {
		return res.StatusCode, err
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return res.StatusCode, nil
	}
	if out == nil {
		return res.StatusCode, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return res.StatusCode, fmt.Errorf("identity: decode profile response: %w", err)
	}
	return res.StatusCode, nil
}

// DefaultHTTPClient builds the bounded-timeout client adapters fall
// back to when none is injected.
func DefaultHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &http.Client{Timeout: timeout}
}

func readLimitedBody(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxProfileResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("identity: read response body: %w", err)
	}
	if int64(len(data)) > MaxProfileResponseBytes {
		return nil, fmt.Errorf("identity: response exceeds %d bytes", MaxProfileResponseBytes)
	}
	return data, nil
}

func compactBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > 256 {
		trimmed = trimmed[:256]
	}
	return trimmed
}
