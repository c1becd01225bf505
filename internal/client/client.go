// Package client talks to the chat server over HTTP and websockets. It
// satisfies the interfaces the session and chat packages depend on, so the
// same state machine and conversation code run against a remote server.
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
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/QQCPM/ChatChat/internal/api/respond"
	"github.com/QQCPM/ChatChat/internal/apperrors"
)

const defaultTimeout = 15 * time.Second

// Client is an authenticated connection to one server.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	dialer *websocket.Dialer
	log    *logrus.Entry
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithDialer replaces the default websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// New returns a client for the server at baseURL authenticating with token.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server url %q must be http or https", baseURL)
	}
	c := &Client{
		base:   base,
		token:  token,
		http:   &http.Client{Timeout: defaultTimeout},
		dialer: websocket.DefaultDialer,
		log:    logrus.WithFields(logrus.Fields{"component": "client", "server": base.Host}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// endpoint resolves path against the server url. path is already escaped.
func (c *Client) endpoint(path string) string {
	return c.base.JoinPath(path).String()
}

func (c *Client) wsEndpoint(path string) string {
	u := c.base.JoinPath(path)
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String()
}

func (c *Client) authHeader() http.Header {
	h := make(http.Header)
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return h
}

// do sends a JSON request and decodes a JSON response into out. Error
// responses come back as *apperrors.Error with the server's code; transport
// failures are PERSISTENCE_FAILURE.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header = c.authHeader()
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.log.WithError(err).WithField("path", path).Debug("Request failed")
		return apperrors.Wrap(apperrors.CodePersistenceFailure, "server is unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(apperrors.CodePersistenceFailure, "unreadable server response", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body respond.ErrorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Code == "" {
		cause := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= http.StatusInternalServerError {
			return apperrors.Wrap(apperrors.CodePersistenceFailure, "server error", cause)
		}
		return apperrors.Wrap(apperrors.CodeUnknown, http.StatusText(resp.StatusCode), cause)
	}
	return apperrors.New(body.Code, body.Message)
}

// IsUnauthenticated reports whether err means the token was rejected.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, apperrors.ErrUnauthenticated)
}
