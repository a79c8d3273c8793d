// Package chatspace is the Go client for the chat sync API. A Client
// holds the session; Room binds it to one room and satisfies the
// polling engine's backend contract.
package chatspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited reports whether the error is a 429.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.Mutex
	token string
	csrf  string
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken seeds an existing session token instead of logging in.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// User is the caller's identity as returned by login.
type User struct {
	UID      uuid.UUID `json:"uid"`
	Username string    `json:"username"`
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar"`
	IsAdmin  bool      `json:"is_admin"`
}

// Login authenticates and stores both tokens on the client.
func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	var resp struct {
		Token     string `json:"token"`
		CSRFToken string `json:"csrf_token"`
		User      User   `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/login",
		map[string]string{"username": username, "password": password}, &resp)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.token = resp.Token
	c.csrf = resp.CSRFToken
	c.mu.Unlock()
	return &resp.User, nil
}

// RefreshCSRF fetches a fresh anti-forgery token. Called automatically
// when a mutation comes back 403.
func (c *Client) RefreshCSRF(ctx context.Context) error {
	var resp struct {
		CSRFToken string `json:"csrf_token"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/token", nil, &resp); err != nil {
		return err
	}

	c.mu.Lock()
	c.csrf = resp.CSRFToken
	c.mu.Unlock()
	return nil
}

// UnreadMentions returns the mention badge count since the given time.
func (c *Client) UnreadMentions(ctx context.Context, since time.Time) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	path := fmt.Sprintf("/v1/notifications/unread?since=%d", since.Unix())
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// do runs one request. A 403 on a mutation means the anti-forgery
// token went stale: refresh it once and retry. A second 403 is
// returned to the caller.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	err := c.doOnce(ctx, method, path, payload, out)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden && method != http.MethodGet {
		if refreshErr := c.RefreshCSRF(ctx); refreshErr != nil {
			return err
		}
		return c.doOnce(ctx, method, path, payload, out)
	}
	return err
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.Lock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.csrf != "" && method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", c.csrf)
	}
	c.mu.Unlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return &APIError{StatusCode: resp.StatusCode, Message: errBody.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
