// Package apiclient is a Go client for the platform API. It holds the
// session's token pair and transparently refreshes the access token
// when the server reports it expired: one refresh, one retry, and if
// the request still fails the session is declared dead.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// ErrSessionExpired means the refresh token itself was rejected; the
// caller must log in again.
var ErrSessionExpired = errors.New("apiclient: session expired, log in again")

const codeTokenExpired = "TOKEN_EXPIRED"

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apiclient: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type Client struct {
	baseURL string
	http    *http.Client

	mu     sync.Mutex
	tokens tokenPair
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SetTokens installs a token pair obtained out of band, for example
// from a stored session.
func (c *Client) SetTokens(accessToken, refreshToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = tokenPair{AccessToken: accessToken, RefreshToken: refreshToken}
}

// Login authenticates and stores the resulting session tokens.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return err
	}

	var tokens tokenPair
	if err := json.Unmarshal(env.Data, &tokens); err != nil {
		return fmt.Errorf("apiclient: decode login response: %w", err)
	}

	c.mu.Lock()
	c.tokens = tokens
	c.mu.Unlock()
	return nil
}

// Do executes an authenticated request and decodes the data field of
// the response envelope into out (which may be nil).
//
// On TOKEN_EXPIRED the client refreshes the access token exactly once
// and retries the request exactly once. Any further expiry, or a
// failed refresh, surfaces as ErrSessionExpired.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	reqErr := decodeInto(resp, out)

	var apiErr *APIError
	if !errors.As(reqErr, &apiErr) || apiErr.Code != codeTokenExpired {
		return reqErr
	}

	if err := c.refresh(ctx); err != nil {
		c.clearSession()
		return ErrSessionExpired
	}

	resp, err = c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	retryErr := decodeInto(resp, out)
	if errors.As(retryErr, &apiErr) && apiErr.Code == codeTokenExpired {
		c.clearSession()
		return ErrSessionExpired
	}
	return retryErr
}

// clearSession drops the stored token pair so a dead session is not
// replayed on later calls.
func (c *Client) clearSession() {
	c.mu.Lock()
	c.tokens = tokenPair{}
	c.mu.Unlock()
}

func decodeInto(resp *http.Response, out any) error {
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return err
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("apiclient: decode data: %w", err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.Lock()
	access := c.tokens.AccessToken
	c.mu.Unlock()
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	return c.http.Do(req)
}

// refresh exchanges the refresh token for a new access token.
func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	refreshToken := c.tokens.RefreshToken
	c.mu.Unlock()
	if refreshToken == "" {
		return ErrSessionExpired
	}

	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return err
	}

	var refreshed struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(env.Data, &refreshed); err != nil || refreshed.AccessToken == "" {
		return ErrSessionExpired
	}

	c.mu.Lock()
	c.tokens.AccessToken = refreshed.AccessToken
	c.mu.Unlock()
	return nil
}

func decodeEnvelope(resp *http.Response) (*envelope, error) {
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("apiclient: decode response: %w", err)
	}
	if !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: env.Message}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return nil, apiErr
	}
	return &env, nil
}
