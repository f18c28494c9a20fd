package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/transport"
)

const maxBodyBytes = 1 << 20

// Paths are the service endpoints relative to the base URL.
type Paths struct {
	Login    string
	Register string
	Refresh  string
	Logout   string
	Me       string
}

// DefaultPaths returns the endpoint layout of the reference service.
func DefaultPaths() Paths {
	return Paths{
		Login:    "/auth/login",
		Register: "/auth/register",
		Refresh:  "/auth/refresh",
		Logout:   "/auth/logout",
		Me:       "/auth/me",
	}
}

// Payload is the session payload returned by login and refresh.
type Payload struct {
	User        session.User `json:"user"`
	Roles       []string     `json:"roles"`
	AccessToken string       `json:"access_token"`
}

// Profile is the identity payload returned by register and me.
type Profile struct {
	User  session.User `json:"user"`
	Roles []string     `json:"roles"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Client talks to the authentication service. The *http.Client it is given
// carries the cookie jar holding the refresh cookie.
type Client struct {
	baseURL string
	http    *http.Client
	paths   Paths
}

// New returns a Client for baseURL.
func New(baseURL string, httpClient *http.Client, paths Paths) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		paths:   paths,
	}
}

// URL resolves path against the base URL.
func (c *Client) URL(path string) string {
	return c.baseURL + path
}

// Login exchanges credentials for a session payload.
func (c *Client) Login(ctx context.Context, email, password string) (*Payload, error) {
	var out Payload
	if err := c.do(transport.WithoutRefresh(ctx), c.paths.Login, credentials{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	if err := out.validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account. It does not sign the caller in.
func (c *Client) Register(ctx context.Context, email, password string) (*Profile, error) {
	var out Profile
	if err := c.do(transport.WithoutRefresh(ctx), c.paths.Register, credentials{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh presents the ambient refresh cookie and returns a new session payload.
func (c *Client) Refresh(ctx context.Context) (*Payload, error) {
	var out Payload
	if err := c.do(transport.WithoutRefresh(ctx), c.paths.Refresh, nil, &out); err != nil {
		return nil, err
	}
	if err := out.validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the server-side session. It goes through the credential
// interceptor like any other authenticated call.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, c.paths.Logout, nil, nil)
}

// Me returns the identity behind the current access token.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, c.paths.Me, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	var body struct {
		Error string `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(data, &body); err == nil {
		msg = body.Error
	}
	if msg == "" {
		msg = strings.ToLower(http.StatusText(status))
	}
	return &Error{Status: status, Message: msg}
}

func (p *Payload) validate() error {
	if p.AccessToken == "" || p.User.ID == "" {
		return fmt.Errorf("%w: missing user or access_token", ErrMalformedPayload)
	}
	if p.Roles == nil {
		p.Roles = []string{}
	}
	return nil
}
