// Package gateway implements the GatewayClient port against the relay
// gateway's management API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/evanrudell/relaypanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GatewayClient = (*Client)(nil)

// Client implements the driven.GatewayClient port over the gateway's
// /api-keys synchronization endpoint. Both calls authenticate with a static
// bearer secret from deployment configuration. The client never retries;
// retry policy belongs to the sync engine.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secret     string
}

// NewClient creates a gateway client for the given base URL and bearer secret.
func NewClient(baseURL, secret string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, secret string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
	}
}

// keysEnvelope is the GET /api-keys response body.
type keysEnvelope struct {
	Keys []string `json:"keys"`
}

// FetchKeys retrieves the gateway's current credential set.
func (c *Client) FetchKeys(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api-keys", nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch keys request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch keys: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch keys: gateway returned %d", resp.StatusCode)
	}

	var envelope keysEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode keys response: %w", err)
	}

	if envelope.Keys == nil {
		envelope.Keys = []string{}
	}

	return envelope.Keys, nil
}

// ReplaceKeys overwrites the gateway's entire credential set with keys.
// This is a full-replace (last-writer-wins) operation: the caller must
// always submit the complete desired set.
func (c *Client) ReplaceKeys(ctx context.Context, keys []string) error {
	if keys == nil {
		keys = []string{}
	}

	body, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("marshal keys: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/api-keys", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build replace keys request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("replace keys: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the transport can reuse the connection.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("replace keys: gateway returned %d", resp.StatusCode)
	}

	return nil
}
