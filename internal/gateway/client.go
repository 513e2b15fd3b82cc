// Package gateway is the typed HTTP client of the task board gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultTimeout bounds every call except the change stream.
	DefaultTimeout = 10 * time.Second

	// HandshakeTimeout bounds the wait for a stream's "subscribed" event.
	HandshakeTimeout = 10 * time.Second
)

// ErrNoToken is returned by calls that need a session when no token is set.
var ErrNoToken = errors.New("gateway: no session token")

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("gateway: %d: %s", e.Status, e.Message)
}

func IsUnauthorized(err error) bool { return hasStatus(err, http.StatusUnauthorized) }

func IsNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }

func IsConflict(err error) bool { return hasStatus(err, http.StatusConflict) }

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client talks to one gateway. It is safe for concurrent use; the session
// token can be swapped at any time with SetToken.
type Client struct {
	baseURL string
	base    http.RoundTripper
	timeout time.Duration

	anon *http.Client

	mu     sync.RWMutex
	token  string
	authed *http.Client
	stream *http.Client
}

type Option func(*Client)

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.base = rt }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("gateway url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		base:    http.DefaultTransport,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.anon = &http.Client{Transport: c.base, Timeout: c.timeout}
	return c, nil
}

// SetToken installs the bearer token used for authenticated calls.
// An empty token signs the client out.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = token
	if token == "" {
		c.authed, c.stream = nil, nil
		return
	}
	transport := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
		Base:   c.base,
	}
	c.authed = &http.Client{Transport: transport, Timeout: c.timeout}
	// streams stay open indefinitely
	c.stream = &http.Client{Transport: transport}
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) authedClient() (*http.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.authed == nil {
		return nil, ErrNoToken
	}
	return c.authed, nil
}

func (c *Client) streamClient() (*http.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stream == nil {
		return nil, ErrNoToken
	}
	return c.stream, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	if len(query) == 0 {
		return c.baseURL + path
	}
	return c.baseURL + path + "?" + query.Encode()
}

// call performs an authenticated JSON request.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, in, out any) error {
	hc, err := c.authedClient()
	if err != nil {
		return err
	}
	return c.send(ctx, hc, method, c.endpoint(path, query), in, out)
}

func (c *Client) send(ctx context.Context, hc *http.Client, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, req.URL.Path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &payload) == nil {
		apiErr.Message = payload.Error
	}
	return apiErr
}
