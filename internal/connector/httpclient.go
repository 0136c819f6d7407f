package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultRequestTimeout = 15 * time.Second
	defaultMaxAttempts    = 3
	defaultBaseDelay      = 250 * time.Millisecond
)

// httpClient is the shared fetch transport for the HTTP-backed adapters:
// per-request timeout, credential attachment, and bounded retry with
// exponential backoff on transport errors, 429 and 5xx responses.
type httpClient struct {
	base        string
	client      *http.Client
	auth        authenticator
	maxAttempts int
	baseDelay   time.Duration
}

func newHTTPClient(baseURL string, auth AuthConfig) (*httpClient, error) {
	client := &http.Client{Timeout: defaultRequestTimeout}
	authn, err := newAuthenticator(auth, client)
	if err != nil {
		return nil, err
	}
	return &httpClient{
		base:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:      client,
		auth:        authn,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
	}, nil
}

// getJSON fetches path with the query attached and decodes the JSON body
// into out. Retries are attempted for transient failures only; a 4xx
// other than 429 fails immediately.
func (c *httpClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.base + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.baseDelay << (attempt - 2)
			slog.Debug("retrying fetch", "url", target, "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		retryable, err := c.do(ctx, target, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return fmt.Errorf("fetch %s: retries exhausted: %w", target, lastErr)
}

func (c *httpClient) do(ctx context.Context, target string, out any) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if err := c.auth.authenticate(ctx, req); err != nil {
		return false, fmt.Errorf("authenticate: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return true, fmt.Errorf("status %d", resp.StatusCode)
	default:
		io.Copy(io.Discard, resp.Body)
		return false, fmt.Errorf("status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}
