// Package client is a Go client for the surrealdesk HTTP API.
//
// The request and response types in this package are shared with the
// server, so both sides agree on the wire format. Workspace payloads reuse
// the types of [github.com/surrealdb/surrealdesk/pkg/workspace] and
// [github.com/surrealdb/surrealdesk/pkg/models].
//
//	c := client.NewClient("http://localhost:8080")
//	if _, err := c.SignIn(ctx, "ada@example.com", "correct horse 1"); err != nil {
//		return err
//	}
//	state, err := c.Workspace(ctx)
//
// Mutations are accepted by the server before they are persisted. Set
// [Client.Wait] to have every mutation wait for persistence, so a failed
// write comes back as an error.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: status=%d, message=%s", e.StatusCode, e.Message)
}

// StatusCode returns the HTTP status of an *APIError in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// ErrorResponse is the body of every error answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// Wait makes mutations block until the write is persisted.
	Wait bool

	mu        sync.RWMutex
	authToken string
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://localhost:8080", without a trailing slash.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// SetAuthToken sets the bearer token sent with every request.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

func (c *Client) AuthToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authToken
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := c.AuthToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.httpClient.Do(req)
}

func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		var e ErrorResponse
		if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
			e.Error = string(body)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// call performs a request and decodes the answer into target.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, target any) error {
	resp, err := c.doRequest(ctx, method, path, query, body)
	if err != nil {
		return fmt.Errorf("%s %s request failed: %w", method, path, err)
	}
	return decodeResponse(resp, target)
}

// mutate is call for endpoints that accept writes, honouring Wait.
func (c *Client) mutate(ctx context.Context, method, path string, body any) (*Accepted, error) {
	var query url.Values
	if c.Wait {
		query = url.Values{"wait": {"true"}}
	}
	var out Accepted
	if err := c.call(ctx, method, path, query, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Healthz reports the server status.
func (c *Client) Healthz(ctx context.Context) (*HealthzResponse, error) {
	var out HealthzResponse
	if err := c.call(ctx, http.MethodGet, "/healthz", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
