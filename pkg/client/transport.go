package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

type contextKey string

// retriedKey marks a request that has already been replayed once after a
// refresh. Its presence makes any further 401 pass through untouched.
const retriedKey contextKey = "retried"

// refreshTransport attaches the bearer token and implements the 401
// refresh-and-retry state machine: the first 401 triggers a token refresh and
// a single replay of the original request; a failed refresh logs the session
// out and returns the original response.
type refreshTransport struct {
	base    http.RoundTripper
	tokens  *tokenStore
	session *SessionStore
	logger  *zap.Logger

	// refresh exchanges the stored refresh token for a new pair.
	refresh func(ctx context.Context) error
	// logout revokes the given refresh token server-side, best effort. It
	// must not run through this transport or a failed revocation would
	// re-enter the refresh path.
	logout func(ctx context.Context, refreshToken string)

	mu sync.Mutex
}

func (t *refreshTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	usedAccess := t.tokens.get().Access
	if usedAccess != "" {
		req.Header.Set("Authorization", "Bearer "+usedAccess)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if req.Context().Value(retriedKey) != nil {
		return resp, nil
	}
	// Requests whose body cannot be re-materialized are not replayed.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	if err := t.refreshOnce(req.Context(), usedAccess); err != nil {
		t.logger.Debug("token refresh failed, clearing session", zap.Error(err))
		// Credentials are dropped before the revocation attempt so a
		// rejected logout cannot trigger another refresh cycle.
		revoked := t.tokens.get().Refresh
		t.session.RemoveUser()
		t.tokens.clear()
		if t.logout != nil && revoked != "" {
			t.logout(req.Context(), revoked)
		}
		return resp, nil
	}

	// Preserve the original response in case the caller inspects it after a
	// failed replay setup.
	retry := req.Clone(context.WithValue(req.Context(), retriedKey, true))
	if req.GetBody != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return resp, nil
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+t.tokens.get().Access)

	drain(resp)
	return t.base.RoundTrip(retry)
}

// refreshOnce performs a single-flight refresh: concurrent callers that lost
// the race reuse the tokens the winner obtained.
func (t *refreshTransport) refreshOnce(ctx context.Context, usedAccess string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if current := t.tokens.get().Access; current != "" && current != usedAccess {
		return nil
	}
	return t.refresh(ctx)
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

// rewindable wraps a byte payload so it can serve as both Body and GetBody.
func rewindable(payload []byte) (io.ReadCloser, func() (io.ReadCloser, error)) {
	return io.NopCloser(bytes.NewReader(payload)), func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
}
