package client

import "sync"

// SessionAction tags the commands that may mutate the session store.
type SessionAction string

const (
	ActionSetUser    SessionAction = "SET_USER"
	ActionRemoveUser SessionAction = "REMOVE_USER"
	ActionSetLoading SessionAction = "SET_LOADING"
)

// SessionState is a point-in-time snapshot of the session store.
type SessionState struct {
	User          *UserProfile
	Loading       bool
	Authenticated bool
}

// SessionStore holds the logged-in user. All mutation goes through the
// tagged action methods; reads return copies.
type SessionStore struct {
	mu      sync.RWMutex
	state   SessionState
	nextSub int
	subs    map[int]func(SessionAction, SessionState)
}

// NewSessionStore builds an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{subs: make(map[int]func(SessionAction, SessionState))}
}

// SetUser stores the profile and marks the session authenticated.
func (s *SessionStore) SetUser(user UserProfile) {
	s.dispatch(ActionSetUser, func(state *SessionState) {
		u := user
		state.User = &u
		state.Authenticated = true
		state.Loading = false
	})
}

// RemoveUser clears the session.
func (s *SessionStore) RemoveUser() {
	s.dispatch(ActionRemoveUser, func(state *SessionState) {
		state.User = nil
		state.Authenticated = false
		state.Loading = false
	})
}

// SetLoading flags an in-flight session lookup.
func (s *SessionStore) SetLoading(loading bool) {
	s.dispatch(ActionSetLoading, func(state *SessionState) {
		state.Loading = loading
	})
}

// State returns a snapshot of the current session.
func (s *SessionStore) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := s.state
	if state.User != nil {
		u := *state.User
		state.User = &u
	}
	return state
}

// Subscribe registers a callback invoked after every action. The returned
// function removes the subscription.
func (s *SessionStore) Subscribe(fn func(SessionAction, SessionState)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *SessionStore) dispatch(action SessionAction, mutate func(*SessionState)) {
	s.mu.Lock()
	mutate(&s.state)
	state := s.state
	if state.User != nil {
		u := *state.User
		state.User = &u
	}
	subs := make([]func(SessionAction, SessionState), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(action, state)
	}
}

// Tokens is the access/refresh pair issued at login.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenPersister stores tokens across client restarts. The zero
// implementation keeps them in memory only.
type TokenPersister interface {
	Save(tokens Tokens) error
	Load() (Tokens, error)
	Clear() error
}

// tokenStore guards the live token pair.
type tokenStore struct {
	mu        sync.RWMutex
	tokens    Tokens
	persister TokenPersister
}

func newTokenStore(persister TokenPersister) *tokenStore {
	ts := &tokenStore{persister: persister}
	if persister != nil {
		if tokens, err := persister.Load(); err == nil {
			ts.tokens = tokens
		}
	}
	return ts
}

func (t *tokenStore) get() Tokens {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tokens
}

func (t *tokenStore) set(tokens Tokens) {
	t.mu.Lock()
	t.tokens = tokens
	t.mu.Unlock()
	if t.persister != nil {
		_ = t.persister.Save(tokens)
	}
}

func (t *tokenStore) clear() {
	t.mu.Lock()
	t.tokens = Tokens{}
	t.mu.Unlock()
	if t.persister != nil {
		_ = t.persister.Clear()
	}
}
