package client

import (
	"context"
	"sync"
)

// State is the resolution state of a session.
type State int

const (
	// StateUninitialized means Restore has not been called yet.
	StateUninitialized State = iota
	// StateChecking means a stored token is being verified against the
	// server right now.
	StateChecking
	// StateAuthenticated means the server confirmed the stored token.
	StateAuthenticated
	// StateAnonymous means there is no session: no token was stored, or
	// the stored one was rejected, or the user logged out.
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateChecking:
		return "checking"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the session at one point in time.
type Snapshot struct {
	State State
	User  *User
}

// SessionController tracks whether the process has a valid session. It owns
// all writes to the token store; the wrapped Client only reads from it.
//
// Lifecycle: the controller starts uninitialized. Restore moves it through
// checking into authenticated or anonymous, and every later transition
// (login, logout, any 401 seen by the client) resolves it again. Guards
// block while the state is unresolved and never answer mid-check.
type SessionController struct {
	client *Client
	tokens TokenStore

	mu     sync.Mutex
	state  State
	user   *User
	waitCh chan struct{}
	subs   []func(Snapshot)
}

// NewSessionController wraps a client and wires itself up as the client's
// unauthorized hook, so any 401 anywhere tears the session down.
func NewSessionController(c *Client) *SessionController {
	s := &SessionController{
		client: c,
		tokens: c.Tokens(),
		state:  StateUninitialized,
		waitCh: make(chan struct{}),
	}
	c.OnUnauthorized(s.Invalidate)
	return s
}

// Current returns the session state as of now.
func (s *SessionController) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive every state change, in order. Callbacks
// run synchronously with the controller's lock held: they must return
// quickly and must not call back into the controller or the client.
func (s *SessionController) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Restore resolves the session from whatever token is persisted.
//
// With no stored token it resolves anonymous immediately, without touching
// the network. With one, it verifies the token against the server; any
// failure — rejection, transport error, cancellation — clears the store and
// resolves anonymous. A token is never half-trusted.
//
// If a login or logout lands while the check is in flight, the stored token
// no longer matches the one being checked and the stale result is dropped.
func (s *SessionController) Restore(ctx context.Context) Snapshot {
	s.mu.Lock()
	tok, ok := s.tokens.Load()
	if !ok || tok == "" {
		snap := s.resolveLocked(StateAnonymous, nil)
		s.mu.Unlock()
		return snap
	}
	s.transitionLocked(StateChecking, nil)
	s.mu.Unlock()

	user, err := s.client.MeWithToken(ctx, tok)

	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.tokens.Load(); !ok || current != tok {
		// The session changed under us while the check was in flight;
		// whoever changed it already resolved the state.
		return s.snapshotLocked()
	}
	if err != nil {
		_ = s.tokens.Clear()
		return s.resolveLocked(StateAnonymous, nil)
	}
	return s.resolveLocked(StateAuthenticated, user)
}

// Register creates an account, persists its token, and resolves the session
// authenticated.
func (s *SessionController) Register(ctx context.Context, email, username, password string) (*User, error) {
	sess, err := s.client.Register(ctx, email, username, password)
	if err != nil {
		return nil, err
	}
	return s.establish(sess)
}

// Login authenticates, persists the token, and resolves the session
// authenticated.
func (s *SessionController) Login(ctx context.Context, email, password string) (*User, error) {
	sess, err := s.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.establish(sess)
}

func (s *SessionController) establish(sess *Session) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.tokens.Save(sess.Token); err != nil {
		return nil, err
	}
	user := sess.User
	s.resolveLocked(StateAuthenticated, &user)
	return &user, nil
}

// Logout ends the session synchronously: the token is gone and the state is
// anonymous before Logout returns. No server call is made; the token simply
// stops being presented.
func (s *SessionController) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.tokens.Clear()
	s.resolveLocked(StateAnonymous, nil)
	return err
}

// Invalidate is the universal reaction to a rejected credential: clear the
// store and resolve anonymous. The client calls it on every 401; it is safe
// to call repeatedly.
func (s *SessionController) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.tokens.Clear()
	s.resolveLocked(StateAnonymous, nil)
}

// RequireAuthenticated returns the session user, blocking while the state
// is still unresolved. It returns ErrUnauthorized once the session resolves
// anonymous, and never answers from a mid-check state.
func (s *SessionController) RequireAuthenticated(ctx context.Context) (*User, error) {
	for {
		s.mu.Lock()
		switch s.state {
		case StateAuthenticated:
			user := cloneUser(s.user)
			s.mu.Unlock()
			return user, nil
		case StateAnonymous:
			s.mu.Unlock()
			return nil, ErrUnauthorized
		default:
			ch := s.waitCh
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ch:
			}
		}
	}
}

// RequireAnonymous blocks while the state is unresolved, then returns nil
// if the session is anonymous or ErrAuthenticated if it is not.
func (s *SessionController) RequireAnonymous(ctx context.Context) error {
	for {
		s.mu.Lock()
		switch s.state {
		case StateAnonymous:
			s.mu.Unlock()
			return nil
		case StateAuthenticated:
			s.mu.Unlock()
			return ErrAuthenticated
		default:
			ch := s.waitCh
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ch:
			}
		}
	}
}

// resolveLocked moves to a terminal state and wakes guard waiters.
func (s *SessionController) resolveLocked(state State, user *User) Snapshot {
	snap := s.transitionLocked(state, user)
	if s.waitCh != nil {
		close(s.waitCh)
		s.waitCh = nil
	}
	return snap
}

// transitionLocked applies a state change and notifies subscribers when
// something actually changed.
func (s *SessionController) transitionLocked(state State, user *User) Snapshot {
	changed := s.state != state || !sameUser(s.user, user)
	if state == StateChecking && s.waitCh == nil {
		s.waitCh = make(chan struct{})
	}
	s.state = state
	s.user = user

	snap := s.snapshotLocked()
	if changed {
		for _, fn := range s.subs {
			fn(snap)
		}
	}
	return snap
}

func (s *SessionController) snapshotLocked() Snapshot {
	return Snapshot{State: s.state, User: cloneUser(s.user)}
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

func sameUser(a, b *User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}
