package openairealtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultURL is the realtime websocket endpoint.
const DefaultURL = "wss://api.openai.com/v1/realtime"

// Client dials realtime sessions.
type Client struct {
	apiKey           string
	organization     string
	project          string
	url              string
	handshakeTimeout time.Duration
}

// Option configures the Client.
type Option func(*Client)

// NewClient creates a client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:           apiKey,
		url:              DefaultURL,
		handshakeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithOrganization sets the OpenAI-Organization header.
func WithOrganization(orgID string) Option {
	return func(c *Client) { c.organization = orgID }
}

// WithProject sets the OpenAI-Project header.
func WithProject(projectID string) Option {
	return func(c *Client) { c.project = projectID }
}

// WithURL overrides the websocket endpoint.
func WithURL(u string) Option {
	return func(c *Client) { c.url = u }
}

// WithHandshakeTimeout bounds the websocket handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) { c.handshakeTimeout = d }
}

// Connect opens a realtime session for model. A rejected handshake returns
// an *Error carrying the HTTP status.
func (c *Client) Connect(ctx context.Context, model string) (*Session, error) {
	if c.apiKey == "" {
		return nil, &Error{Code: CodeInvalidAPIKey, Message: "API key is required", HTTPStatus: http.StatusUnauthorized}
	}
	if model == "" {
		model = ModelGPT4oRealtimePreview
	}
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("openai-realtime: parse url: %w", err)
	}
	q := u.Query()
	q.Set("model", model)
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.apiKey)
	headers.Set("OpenAI-Beta", "realtime=v1")
	if c.organization != "" {
		headers.Set("OpenAI-Organization", c.organization)
	}
	if c.project != "" {
		headers.Set("OpenAI-Project", c.project)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.handshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			return nil, &Error{
				Code:       codeForStatus(resp.StatusCode),
				Message:    fmt.Sprintf("handshake failed: %v", err),
				HTTPStatus: resp.StatusCode,
			}
		}
		return nil, fmt.Errorf("openai-realtime: dial: %w", err)
	}
	return newSession(conn, model), nil
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return CodeInvalidAPIKey
	case http.StatusTooManyRequests:
		return CodeRateLimitExceeded
	}
	return "connection_failed"
}
