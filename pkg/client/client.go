package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Config configures a portal client.
type Config struct {
	BaseURL string
	// Transport is the base round tripper shared by both clients. Defaults
	// to http.DefaultTransport.
	Transport http.RoundTripper
	Timeout   time.Duration
	Persister TokenPersister
	Logger    *zap.Logger
	// Clock drives notification auto-dismissal. Defaults to the wall clock.
	Clock      clock.Clock
	NotifyTTL  time.Duration
	APIPrefix  string
}

// Client owns the public/private HTTP client pair for the portal API. The
// private client refreshes expired access tokens transparently; the public
// client never carries credentials.
type Client struct {
	baseURL  *url.URL
	public   *http.Client
	private  *http.Client
	session  *SessionStore
	tokens   *tokenStore
	notifier *Notifier
	logger   *zap.Logger
	prefix   string
}

// New builds a portal client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	c := &Client{
		baseURL:  base,
		session:  NewSessionStore(),
		tokens:   newTokenStore(cfg.Persister),
		notifier: NewNotifier(clk, cfg.NotifyTTL),
		logger:   logger,
		prefix:   strings.TrimRight(cfg.APIPrefix, "/"),
	}

	c.public = &http.Client{Transport: transport, Timeout: timeout}
	c.private = &http.Client{
		Timeout: timeout,
		Transport: &refreshTransport{
			base:    transport,
			tokens:  c.tokens,
			session: c.session,
			logger:  logger,
			refresh: c.refreshTokens,
			logout:  c.revokeSession,
		},
	}
	return c, nil
}

// Session exposes the session store.
func (c *Client) Session() *SessionStore { return c.session }

// Notifier exposes the notification center.
func (c *Client) Notifier() *Notifier { return c.notifier }

func (c *Client) endpoint(path string) string {
	return c.baseURL.ResolveReference(&url.URL{Path: c.prefix + path}).String()
}

// Login authenticates with username and password and stores the session.
func (c *Client) Login(ctx context.Context, username, password string) (*UserProfile, error) {
	var result struct {
		Tokens
		User UserProfile `json:"user"`
	}
	if _, err := c.doJSON(ctx, c.public, http.MethodPost, "/auth/jwt/create/", map[string]string{
		"username": username,
		"password": password,
	}, &result); err != nil {
		return nil, err
	}

	c.tokens.set(result.Tokens)
	c.session.SetUser(result.User)
	return &result.User, nil
}

// Logout revokes the refresh token and clears the session. The local session
// is cleared even when the revocation call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.revokeSessionErr(ctx)
	c.tokens.clear()
	c.session.RemoveUser()
	return err
}

// revokeSession fires the best-effort logout after a failed refresh. It
// uses the public client: the access token is already dead at this point,
// so routing it through the private client would loop back into refresh.
func (c *Client) revokeSession(ctx context.Context, refreshToken string) {
	_, _ = c.doJSON(ctx, c.public, http.MethodPost, "/auth/logout/", map[string]string{"refresh": refreshToken}, nil)
}

func (c *Client) revokeSessionErr(ctx context.Context) error {
	refresh := c.tokens.get().Refresh
	if refresh == "" {
		return nil
	}
	_, err := c.doJSON(ctx, c.private, http.MethodPost, "/auth/logout/", map[string]string{"refresh": refresh}, nil)
	return err
}

// LoadSession restores the session from persisted tokens by fetching the
// profile. A failed lookup dispatches RemoveUser.
func (c *Client) LoadSession(ctx context.Context) error {
	c.session.SetLoading(true)
	if c.tokens.get().Access == "" && c.tokens.get().Refresh == "" {
		c.session.RemoveUser()
		return nil
	}

	var profile UserProfile
	if _, err := c.doJSON(ctx, c.private, http.MethodGet, "/profile/me/", nil, &profile); err != nil {
		c.session.RemoveUser()
		return err
	}
	c.session.SetUser(profile)
	return nil
}

// Register creates a new inactive account.
func (c *Client) Register(ctx context.Context, payload map[string]string) error {
	_, err := c.doJSON(ctx, c.public, http.MethodPost, "/auth/users/", payload, nil)
	return err
}

// Activate consumes the mailed uid/token activation pair.
func (c *Client) Activate(ctx context.Context, uid, token string) error {
	_, err := c.doJSON(ctx, c.public, http.MethodPost, "/auth/users/activation/", map[string]string{
		"uid":   uid,
		"token": token,
	}, nil)
	return err
}

// ChangePassword changes the current user's password.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	_, err := c.doJSON(ctx, c.private, http.MethodPost, "/auth/users/set_password/", map[string]string{
		"old_password": oldPassword,
		"new_password": newPassword,
	}, nil)
	return err
}

// RequestPasswordReset mails a reset link to the given address.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	_, err := c.doJSON(ctx, c.public, http.MethodPost, "/auth/users/reset_password/", map[string]string{"email": email}, nil)
	return err
}

// ConfirmPasswordReset sets a new password using a mailed uid/token pair.
func (c *Client) ConfirmPasswordReset(ctx context.Context, uid, token, newPassword string) error {
	_, err := c.doJSON(ctx, c.public, http.MethodPost, "/auth/users/reset_password_confirm/", map[string]string{
		"uid":          uid,
		"token":        token,
		"new_password": newPassword,
	}, nil)
	return err
}

// Profile fetches the current user's profile.
func (c *Client) Profile(ctx context.Context) (*UserProfile, error) {
	var profile UserProfile
	if _, err := c.doJSON(ctx, c.private, http.MethodGet, "/profile/me/", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// refreshTokens exchanges the stored refresh token for a new pair. Called by
// the private transport on 401.
func (c *Client) refreshTokens(ctx context.Context) error {
	refresh := c.tokens.get().Refresh
	if refresh == "" {
		return fmt.Errorf("no refresh token")
	}
	var pair Tokens
	if _, err := c.doJSON(ctx, c.public, http.MethodPost, "/auth/jwt/refresh/", map[string]string{"refresh": refresh}, &pair); err != nil {
		return err
	}
	c.tokens.set(pair)
	return nil
}

type respEnvelope struct {
	Data       json.RawMessage `json:"data"`
	Error      *APIError       `json:"error"`
	Pagination *Pagination     `json:"pagination"`
}

// doJSON issues a JSON request through the given client and decodes the
// envelope data into out.
func (c *Client) doJSON(ctx context.Context, httpc *http.Client, method, path string, payload, out interface{}) (*Pagination, error) {
	var body io.ReadCloser
	var getBody func() (io.ReadCloser, error)
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body, getBody = rewindable(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), nil)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Body = body
		req.GetBody = getBody
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.execute(httpc, req, out)
}

// execute runs the request and decodes the response envelope.
func (c *Client) execute(httpc *http.Client, req *http.Request, out interface{}) (*Pagination, error) {
	resp, err := httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env respEnvelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			if resp.StatusCode >= 400 {
				return nil, &APIError{Code: "HTTP_ERROR", Message: http.StatusText(resp.StatusCode), Status: resp.StatusCode}
			}
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}

	if resp.StatusCode >= 400 {
		if env.Error != nil {
			if env.Error.Status == 0 {
				env.Error.Status = resp.StatusCode
			}
			return nil, env.Error
		}
		return nil, &APIError{Code: "HTTP_ERROR", Message: http.StatusText(resp.StatusCode), Status: resp.StatusCode}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode response data: %w", err)
		}
	}
	return env.Pagination, nil
}
