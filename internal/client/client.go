// Package client talks to a sitegate server's auth API and keeps the
// session cookie on disk between invocations.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/existflow/sitegate/internal/auth"
)

// State is what the CLI persists in ~/.sitegate/session.json
type State struct {
	ServerURL    string `json:"server_url"`
	Cookie       string `json:"cookie,omitempty"`
	PendingToken string `json:"pending_token,omitempty"`
}

// APIError is a non-2xx answer from the server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// IsUnauthorized reports whether err is a 401 from the server
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// ErrNoSession is returned when a call needs a stored cookie and there is none
var ErrNoSession = errors.New("not logged in")

// ErrNoPendingCode is returned by VerifyOTP when no code was requested
var ErrNoPendingCode = errors.New("no verification code pending; run login first")

const DefaultServerURL = "http://localhost:3000"

// Client is the auth API client. It is safe for concurrent use: the
// inactivity monitor refreshes and logs out from different goroutines.
type Client struct {
	statePath  string
	httpClient *http.Client

	mu    sync.Mutex
	state *State
	// logouts counts completed local logouts; a refresh that began before
	// one must not bring the session back.
	logouts uint64
}

// DefaultStatePath returns ~/.sitegate/session.json
func DefaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".sitegate", "session.json"), nil
}

// New creates a client persisting to statePath
func New(statePath string) *Client {
	c := &Client{
		statePath:  statePath,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	c.loadState()
	return c
}

// NewDefault creates a client persisting to DefaultStatePath
func NewDefault() (*Client, error) {
	path, err := DefaultStatePath()
	if err != nil {
		return nil, err
	}
	return New(path), nil
}

func (c *Client) loadState() {
	c.state = &State{ServerURL: DefaultServerURL}

	data, err := os.ReadFile(c.statePath)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, c.state); err != nil || c.state.ServerURL == "" {
		c.state = &State{ServerURL: DefaultServerURL}
	}
}

// saveState must be called with mu held
func (c *Client) saveState() error {
	if err := os.MkdirAll(filepath.Dir(c.statePath), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c.state, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.statePath, data, 0600)
}

// ServerURL returns the configured server
func (c *Client) ServerURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ServerURL
}

// SetServer sets the server URL
func (c *Client) SetServer(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ServerURL = strings.TrimRight(url, "/")
	return c.saveState()
}

// LoginResult is the outcome of RequestOTP
type LoginResult struct {
	// Authenticated is true when no code was needed and a session exists
	Authenticated bool
	Message       string
}

// Login calls POST /api/auth
func (c *Client) Login(ctx context.Context, username, password string) error {
	resp, err := c.post(ctx, "/api/auth", map[string]string{"username": username, "password": password})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captureCookie(resp)
}

// RequestOTP calls POST /api/auth/request-otp. When a code is mailed the
// returned token is remembered for VerifyOTP.
func (c *Client) RequestOTP(ctx context.Context, username, password string) (LoginResult, error) {
	resp, err := c.post(ctx, "/api/auth/request-otp", map[string]string{"username": username, "password": password})
	if err != nil {
		return LoginResult{}, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return LoginResult{}, err
	}

	var result struct {
		Success       bool   `json:"success"`
		Authenticated bool   `json:"authenticated"`
		Message       string `json:"message"`
		Token         string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return LoginResult{}, fmt.Errorf("failed to decode response: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if result.Authenticated {
		c.state.PendingToken = ""
		if err := c.captureCookie(resp); err != nil {
			return LoginResult{}, err
		}
		return LoginResult{Authenticated: true}, nil
	}

	c.state.PendingToken = result.Token
	if err := c.saveState(); err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Message: result.Message}, nil
}

// HasPendingCode reports whether VerifyOTP can be called without a token
func (c *Client) HasPendingCode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.PendingToken != ""
}

// VerifyOTP calls POST /api/auth/verify-otp with the pending token
func (c *Client) VerifyOTP(ctx context.Context, code string) error {
	c.mu.Lock()
	token := c.state.PendingToken
	c.mu.Unlock()
	if token == "" {
		return ErrNoPendingCode
	}

	resp, err := c.post(ctx, "/api/auth/verify-otp", map[string]string{
		"token": token,
		"otp":   strings.TrimSpace(code),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.PendingToken = ""
	return c.captureCookie(resp)
}

// Refresh calls POST /api/auth/refresh-session and returns the new expiry.
// If Logout runs while the request is in flight the minted cookie is
// discarded and ErrNoSession returned.
func (c *Client) Refresh(ctx context.Context) (time.Time, error) {
	c.mu.Lock()
	cookie, gen := c.state.Cookie, c.logouts
	c.mu.Unlock()
	if cookie == "" {
		return time.Time{}, ErrNoSession
	}

	resp, err := c.post(ctx, "/api/auth/refresh-session", nil)
	if err != nil {
		return time.Time{}, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		if IsUnauthorized(err) {
			c.mu.Lock()
			if c.logouts == gen {
				c.state.Cookie = ""
				_ = c.saveState()
			}
			c.mu.Unlock()
		}
		return time.Time{}, err
	}

	var result struct {
		Success   bool  `json:"success"`
		ExpiresAt int64 `json:"expiresAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return time.Time{}, fmt.Errorf("failed to decode response: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.logouts != gen {
		return time.Time{}, ErrNoSession
	}
	if err := c.captureCookie(resp); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(result.ExpiresAt), nil
}

// Logout drops the local cookie, then calls POST /api/auth/logout. The
// local state is cleared even if the server cannot be reached.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	server, cookie := c.state.ServerURL, c.state.Cookie
	c.logouts++
	c.state.Cookie = ""
	c.state.PendingToken = ""
	saveErr := c.saveState()
	c.mu.Unlock()

	resp, err := c.do(ctx, http.MethodPost, server+"/api/auth/logout", nil, cookie)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	return saveErr
}

// Status describes the locally stored session
type Status struct {
	LoggedIn  bool
	ExpiresAt time.Time
	Remaining time.Duration
}

// Status inspects the stored cookie without contacting the server
func (c *Client) Status(now time.Time) Status {
	c.mu.Lock()
	cookie := c.state.Cookie
	c.mu.Unlock()

	if cookie == "" {
		return Status{}
	}
	exp, err := auth.ParseExpiry(cookie)
	if err != nil || !now.Before(exp) {
		return Status{ExpiresAt: exp}
	}
	return Status{LoggedIn: true, ExpiresAt: exp, Remaining: exp.Sub(now)}
}

// Get fetches a path on the gated site with the stored cookie. Redirects are
// not followed so a bounce to the login page is visible.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	server, cookie := c.session()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server+path, nil)
	if err != nil {
		return nil, err
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: cookie})
	}

	hc := *c.httpClient
	hc.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return hc.Do(req)
}

func (c *Client) session() (server, cookie string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ServerURL, c.state.Cookie
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	server, cookie := c.session()
	return c.do(ctx, http.MethodPost, server+path, body, cookie)
}

func (c *Client) do(ctx context.Context, method, url string, body interface{}, cookie string) (*http.Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: cookie})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return resp, nil
}

// captureCookie stores (or clears) the session cookie from resp. It must
// be called with mu held.
func (c *Client) captureCookie(resp *http.Response) error {
	for _, ck := range resp.Cookies() {
		if ck.Name != auth.CookieName {
			continue
		}
		if ck.Value == "" || ck.MaxAge < 0 {
			c.state.Cookie = ""
		} else {
			c.state.Cookie = ck.Value
		}
	}
	return c.saveState()
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var body struct {
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(data, &body)
	return &APIError{Status: resp.StatusCode, Message: body.Message}
}
