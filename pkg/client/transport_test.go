package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryPersister keeps tokens in memory for tests.
type memoryPersister struct {
	mu     sync.Mutex
	tokens Tokens
	saves  int
	clears int
}

func (p *memoryPersister) Save(tokens Tokens) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = tokens
	p.saves++
	return nil
}

func (p *memoryPersister) Load() (Tokens, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokens, nil
}

func (p *memoryPersister) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = Tokens{}
	p.clears++
	return nil
}

func writeEnvelope(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func writeAPIError(w http.ResponseWriter, apiErr *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": apiErr})
}

// portalStub simulates the token lifecycle of the portal API.
type portalStub struct {
	mu           sync.Mutex
	validAccess  string
	refreshCalls int32
	logoutCalls  int32
	profileCalls int32
	refreshFails bool
	// refreshStale issues new tokens without making them valid, so the
	// replayed request still comes back 401.
	refreshStale bool
	refreshDelay time.Duration
	// logoutRejects makes the logout endpoint demand authentication, the
	// way the portal registers it.
	logoutRejects bool
}

func (p *portalStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/profile/me/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&p.profileCalls, 1)
		p.mu.Lock()
		valid := "Bearer " + p.validAccess
		p.mu.Unlock()
		if r.Header.Get("Authorization") != valid {
			writeAPIError(w, &APIError{Code: "UNAUTHORIZED", Message: "invalid token", Status: http.StatusUnauthorized})
			return
		}
		writeEnvelope(w, http.StatusOK, UserProfile{ID: "u1", Username: "limnologist", Role: "MEMBER"})
	})
	mux.HandleFunc("/auth/jwt/refresh/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&p.refreshCalls, 1)
		if p.refreshDelay > 0 {
			time.Sleep(p.refreshDelay)
		}
		if p.refreshFails {
			writeAPIError(w, &APIError{Code: "UNAUTHORIZED", Message: "refresh token is expired or revoked", Status: http.StatusUnauthorized})
			return
		}
		if !p.refreshStale {
			p.mu.Lock()
			p.validAccess = "fresh-access"
			p.mu.Unlock()
		}
		writeEnvelope(w, http.StatusOK, Tokens{Access: "fresh-access", Refresh: "fresh-refresh"})
	})
	mux.HandleFunc("/auth/logout/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&p.logoutCalls, 1)
		if p.logoutRejects {
			writeAPIError(w, &APIError{Code: "UNAUTHORIZED", Message: "authentication required", Status: http.StatusUnauthorized})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func newStubClient(t *testing.T, stub *portalStub, tokens Tokens) (*Client, *memoryPersister, func()) {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	persister := &memoryPersister{tokens: tokens}
	c, err := New(Config{BaseURL: srv.URL, Persister: persister})
	require.NoError(t, err)
	return c, persister, srv.Close
}

func TestExpiredTokenRefreshedAndReplayedOnce(t *testing.T) {
	stub := &portalStub{validAccess: "fresh-access"}
	c, persister, done := newStubClient(t, stub, Tokens{Access: "stale-access", Refresh: "r1"})
	defer done()

	profile, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.ID)
	assert.EqualValues(t, 1, atomic.LoadInt32(&stub.refreshCalls))
	assert.EqualValues(t, 2, atomic.LoadInt32(&stub.profileCalls))
	assert.Equal(t, "fresh-access", c.tokens.get().Access)
	assert.Equal(t, Tokens{Access: "fresh-access", Refresh: "fresh-refresh"}, persister.tokens)
}

func TestValidTokenPassesThrough(t *testing.T) {
	stub := &portalStub{validAccess: "good-access"}
	c, _, done := newStubClient(t, stub, Tokens{Access: "good-access", Refresh: "r1"})
	defer done()

	_, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, atomic.LoadInt32(&stub.refreshCalls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&stub.profileCalls))
}

func TestReplayed401IsNotRefreshedAgain(t *testing.T) {
	// The server rejects even the refreshed token, so the replay comes back
	// 401 and must surface as an error with no second refresh attempt.
	stub := &portalStub{validAccess: "never-issued", refreshStale: true}
	c, _, done := newStubClient(t, stub, Tokens{Access: "stale-access", Refresh: "r1"})
	defer done()

	_, err := c.Profile(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&stub.refreshCalls))
	assert.EqualValues(t, 2, atomic.LoadInt32(&stub.profileCalls))
}

func TestRefreshFailureClearsSessionAndLogsOut(t *testing.T) {
	stub := &portalStub{validAccess: "fresh-access", refreshFails: true}
	c, persister, done := newStubClient(t, stub, Tokens{Access: "stale-access", Refresh: "r1"})
	defer done()
	c.Session().SetUser(UserProfile{ID: "u1", Username: "limnologist"})

	_, err := c.Profile(context.Background())
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	state := c.Session().State()
	assert.False(t, state.Authenticated)
	assert.Nil(t, state.User)
	assert.Equal(t, Tokens{}, c.tokens.get())
	assert.Equal(t, Tokens{}, persister.tokens)
	assert.EqualValues(t, 1, atomic.LoadInt32(&stub.refreshCalls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&stub.logoutCalls))
	// The failed profile call is never replayed.
	assert.EqualValues(t, 1, atomic.LoadInt32(&stub.profileCalls))
}

func TestRejectedLogoutAfterFailedRefreshDoesNotLoop(t *testing.T) {
	// The portal serves logout behind authentication, so the revocation
	// fired after a failed refresh comes back 401 itself. That rejection
	// must not re-enter the refresh path: exactly one refresh and one
	// logout attempt per failed request.
	stub := &portalStub{validAccess: "fresh-access", refreshFails: true, logoutRejects: true}
	c, persister, done := newStubClient(t, stub, Tokens{Access: "stale-access", Refresh: "r1"})
	defer done()
	c.Session().SetUser(UserProfile{ID: "u1", Username: "limnologist"})

	_, err := c.Profile(context.Background())
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	assert.EqualValues(t, 1, atomic.LoadInt32(&stub.refreshCalls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&stub.logoutCalls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&stub.profileCalls))

	state := c.Session().State()
	assert.False(t, state.Authenticated)
	assert.Nil(t, state.User)
	assert.Equal(t, Tokens{}, c.tokens.get())
	assert.Equal(t, Tokens{}, persister.tokens)
}

func TestConcurrentRequestsShareOneRefresh(t *testing.T) {
	stub := &portalStub{validAccess: "fresh-access", refreshDelay: 20 * time.Millisecond}
	c, _, done := newStubClient(t, stub, Tokens{Access: "stale-access", Refresh: "r1"})
	defer done()

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Profile(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&stub.refreshCalls))
}

func TestPublicClientCarriesNoCredentials(t *testing.T) {
	var sawAuth atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			sawAuth.Store(true)
		}
		writeEnvelope(w, http.StatusOK, []Publication{})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Persister: &memoryPersister{tokens: Tokens{Access: "secret", Refresh: "r1"}}})
	require.NoError(t, err)

	_, _, err = Publications(c).List(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, sawAuth.Load())
}
