// Package client is the REST client for the AI Optimizer backend.
//
// Every call is credentialed with the backend session cookie held in the
// client's cookie jar, so a Client represents exactly one session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultCookieName = "session"
)

// Client represents an HTTP client for the AI Optimizer API
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	jar        http.CookieJar
	cookieName string
	seed       string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client; its Jar is replaced by the client's own.
// A nil client keeps the default.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout sets the per-request timeout of the underlying HTTP client
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = timeout
		c.httpClient = &hc
	}
}

// WithCookieName sets the name of the backend session cookie
func WithCookieName(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.cookieName = name
		}
	}
}

// WithSessionCookie seeds the jar with an existing session credential
func WithSessionCookie(value string) Option {
	return func(c *Client) {
		c.seed = value
	}
}

// New creates a new API client rooted at baseURL (for example http://localhost:8080/api)
func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse backend url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: defaultTimeout},
		cookieName: defaultCookieName,
	}

	for _, opt := range opts {
		opt(c)
	}

	// The jar is attached to a copy so a shared http.Client is never mutated
	hc := *c.httpClient
	hc.Jar = jar
	c.httpClient = &hc
	c.jar = jar

	if c.seed != "" {
		c.SetCredential(c.seed)
	}

	return c, nil
}

// BaseURL returns the backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// CookieName returns the name of the backend session cookie
func (c *Client) CookieName() string {
	return c.cookieName
}

// Credential returns the current session cookie value, or "" when anonymous
func (c *Client) Credential() string {
	if c.jar == nil {
		return ""
	}
	for _, cookie := range c.jar.Cookies(c.cookieURL()) {
		if cookie.Name == c.cookieName {
			return cookie.Value
		}
	}
	return ""
}

// SetCredential replaces the session cookie; an empty value removes it
func (c *Client) SetCredential(value string) {
	cookie := &http.Cookie{Name: c.cookieName, Value: value, Path: "/"}
	if value == "" {
		cookie.MaxAge = -1
	}
	c.jar.SetCookies(c.cookieURL(), []*http.Cookie{cookie})
}

// cookieURL is the API root, so cookies scoped to / or to the API path both match
func (c *Client) cookieURL() *url.URL {
	return &url.URL{Scheme: c.baseURL.Scheme, Host: c.baseURL.Host, Path: c.baseURL.Path + "/"}
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

// do sends a request and decodes a JSON response into out (when non-nil)
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		// Some backend endpoints answer with a bare text message
		if msg, ok := out.(*messageEnvelope); ok {
			msg.Message = strings.TrimSpace(string(data))
			return nil
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// send issues the request and converts non-2xx responses into *APIError
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, newAPIError(resp.StatusCode, data)
	}

	return resp, nil
}

// messageEnvelope is the {message} payload; bare-text bodies are accepted too
type messageEnvelope struct {
	Message string `json:"message"`
}
