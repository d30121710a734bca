package gce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"golang.org/x/oauth2"
)

const (
	defaultEndpoint = "https://compute.googleapis.com/compute/v1"
	defaultTokenURL = "https://oauth2.googleapis.com/token"
)

// Credentials is the long-lived OAuth client material used to mint
// short-lived access tokens. Obtained once via the interactive login flow,
// then stored on disk.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

// LoadCredentials reads a credentials file written by `strato init`.
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("reading credentials file: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, &ParseError{What: "credentials file", Err: err}
	}
	if creds.RefreshToken == "" {
		return Credentials{}, fmt.Errorf("credentials file %s has no refresh_token", path)
	}
	return creds, nil
}

// Client issues authenticated calls against the compute control plane.
// Safe for concurrent use: the cached access token lives behind the token
// source's own guard, so concurrent callers share a single in-flight
// refresh instead of each triggering their own.
type Client struct {
	base string
	hc   *http.Client
	ts   oauth2.TokenSource
}

type clientConfig struct {
	tokenURL string
}

// Option configures a Client.
type Option func(*Client, *clientConfig)

// WithEndpoint overrides the API base URL (used in tests).
func WithEndpoint(base string) Option {
	return func(c *Client, _ *clientConfig) {
		c.base = strings.TrimSuffix(base, "/")
	}
}

// WithTokenURL overrides the token-issuing endpoint (used in tests).
func WithTokenURL(u string) Option {
	return func(_ *Client, cfg *clientConfig) {
		cfg.tokenURL = u
	}
}

// WithHTTPClient sets the HTTP client used for both API calls and token
// refreshes.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client, _ *clientConfig) {
		c.hc = hc
	}
}

// NewClient creates a Client that exchanges the refresh credential for an
// access token on first use and caches it for the client's lifetime,
// re-exchanging only once the token expires.
func NewClient(ctx context.Context, creds Credentials, opts ...Option) *Client {
	c := &Client{
		base: defaultEndpoint,
		hc:   http.DefaultClient,
	}
	cfg := &clientConfig{tokenURL: defaultTokenURL}
	for _, opt := range opts {
		opt(c, cfg)
	}

	// Token refreshes go through the same HTTP client as API calls.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.hc)
	oc := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cfg.tokenURL},
	}
	// Config.TokenSource wraps the refresh exchange in a ReuseTokenSource:
	// cached token, single shared refresh under its mutex.
	c.ts = oc.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
	return c
}

// do executes one authenticated request. body (if non-nil) is sent as JSON;
// out (if non-nil) receives the decoded response. Non-2xx responses come
// back as *StatusError, undecodable bodies as *ParseError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	tok, err := c.ts.Token()
	if err != nil {
		return &AuthError{Err: err}
	}

	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, payload)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	tok.SetAuthHeader(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &ParseError{What: "response body", Err: err}
		}
	}
	return nil
}

// statusError converts a non-2xx response into a *StatusError, pulling the
// message from the standard error envelope when one is present.
func statusError(resp *http.Response) error {
	se := &StatusError{
		Code:    resp.StatusCode,
		Message: http.StatusText(resp.StatusCode),
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return se
	}
	var envelope errorResponse
	if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
		se.Message = envelope.Error.Message
	}
	slog.Debug("control plane error", "status", resp.StatusCode, "message", se.Message)
	return se
}
