// Package api is a thin client for the registration backend: JSON
// envelopes, bearer authentication and a single refresh-and-retry on 401.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is used when QFC_API_BASE_URL is unset.
	DefaultBaseURL = "http://localhost:8000/api/v1"
	DefaultTimeout = 30 * time.Second
)

// Endpoint paths relative to the base URL.
const (
	EndpointRefresh          = "/auth/refresh"
	EndpointPrequalification = "/applications/prequalification"
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
	Data    json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// envelope is the backend's response wrapper
type envelope struct {
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client talks to the backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
	logger     zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client for baseURL. tokens may be nil for anonymous use.
func NewClient(baseURL string, tokens TokenStore, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		tokens: tokens,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokens == nil {
		c.tokens = NewMemoryTokenStore()
	}
	c.logger = c.logger.With().Str("component", "api").Logger()
	return c
}

// Get fetches path and decodes the envelope's data into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "encoding %s %s body", method, path)
		}
		payload = b
	}

	status, raw, err := c.send(ctx, method, path, payload, c.tokens.AccessToken())
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		token, rerr := c.refresh(ctx)
		if rerr != nil || token == "" {
			if rerr != nil {
				c.logger.Warn().Err(rerr).Msg("token refresh failed")
			}
			c.tokens.Clear()
		} else {
			status, raw, err = c.send(ctx, method, path, payload, token)
			if err != nil {
				return err
			}
		}
	}
	return decode(status, raw, out)
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "building %s %s", method, path)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "reading %s %s", method, path)
	}
	c.logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("api request")
	return resp.StatusCode, raw, nil
}

// refresh trades the refresh token for a new access token and stores it.
func (c *Client) refresh(ctx context.Context) (string, error) {
	refreshToken := c.tokens.RefreshToken()
	if refreshToken == "" {
		return "", nil
	}
	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return "", errors.Wrap(err, "encoding refresh request")
	}
	status, raw, err := c.send(ctx, http.MethodPost, EndpointRefresh, payload, "")
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", decode(status, raw, nil)
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		Data        struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", errors.Wrap(err, "decoding refresh response")
	}
	token := resp.AccessToken
	if token == "" {
		token = resp.Data.AccessToken
	}
	if token == "" {
		return "", errors.New("refresh response carried no access token")
	}
	c.tokens.SetAccessToken(token)
	return token, nil
}

func decode(status int, raw []byte, out any) error {
	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && status >= 200 && status < 300 {
			return errors.Wrap(err, "decoding response envelope")
		}
	}

	if status < 200 || status >= 300 {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &APIError{Status: status, Message: msg, Data: env.Data}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.Wrap(err, "decoding response data")
	}
	return nil
}
