package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Pending", StatusLabel(StatusPending))
	assert.Equal(t, "Approved", StatusLabel(StatusApproved))
	assert.Equal(t, "Rejected", StatusLabel(StatusRejected))
	assert.Equal(t, "", StatusLabel("archived"))
	assert.Equal(t, "", StatusLabel(""))
}

func TestLoginStoresTokensAndUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/jwt/create/", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["password"] != "password123" {
			writeAPIError(w, &APIError{Code: "INVALID_CREDENTIALS", Message: "invalid username or password", Status: http.StatusUnauthorized})
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"access":  "a1",
			"refresh": "r1",
			"user":    UserProfile{ID: "u1", Username: "limnologist", Role: "ADMIN"},
		})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	profile, err := c.Login(context.Background(), "limnologist", "password123")
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.ID)
	assert.True(t, profile.IsAdmin())

	state := c.Session().State()
	assert.True(t, state.Authenticated)
	require.NotNil(t, state.User)
	assert.Equal(t, "limnologist", state.User.Username)
	assert.Equal(t, Tokens{Access: "a1", Refresh: "r1"}, c.tokens.get())
}

func TestLoginInvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, &APIError{Code: "INVALID_CREDENTIALS", Message: "invalid username or password", Status: http.StatusUnauthorized})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Login(context.Background(), "limnologist", "wrong")
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, "INVALID_CREDENTIALS", apiErr.Code)
	assert.False(t, c.Session().State().Authenticated)
	assert.Equal(t, Tokens{}, c.tokens.get())
}

func TestLoadSessionWithoutTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without stored tokens")
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	var actions []SessionAction
	c.Session().Subscribe(func(action SessionAction, _ SessionState) {
		actions = append(actions, action)
	})

	require.NoError(t, c.LoadSession(context.Background()))
	state := c.Session().State()
	assert.False(t, state.Authenticated)
	assert.False(t, state.Loading)
	assert.Equal(t, []SessionAction{ActionSetLoading, ActionRemoveUser}, actions)
}

func TestLoadSessionRestoresProfile(t *testing.T) {
	stub := &portalStub{validAccess: "a1"}
	c, _, done := newStubClient(t, stub, Tokens{Access: "a1", Refresh: "r1"})
	defer done()

	require.NoError(t, c.LoadSession(context.Background()))
	state := c.Session().State()
	assert.True(t, state.Authenticated)
	require.NotNil(t, state.User)
	assert.Equal(t, "u1", state.User.ID)
}

func TestLogoutClearsSessionEvenWhenRevokeFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, &APIError{Code: "INTERNAL_ERROR", Message: "boom", Status: http.StatusInternalServerError})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Persister: &memoryPersister{tokens: Tokens{Access: "a1", Refresh: "r1"}}})
	require.NoError(t, err)
	c.Session().SetUser(UserProfile{ID: "u1"})

	err = c.Logout(context.Background())
	require.Error(t, err)
	assert.False(t, c.Session().State().Authenticated)
	assert.Equal(t, Tokens{}, c.tokens.get())
}

func TestAPIPrefixApplied(t *testing.T) {
	var seenPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenPath = r.URL.Path
		writeEnvelope(w, http.StatusOK, []Publication{})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, APIPrefix: "/api/v1"})
	require.NoError(t, err)

	_, _, err = Publications(c).List(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/publications/", seenPath)
}
