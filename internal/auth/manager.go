package auth

import (
	"context"
	"net/http"

	"github.com/yanizio/forum/internal/api"
)

// Manager ties the Store to the browser cookie.  Components call it for
// login and logout; gate.RequireAuth uses it as its Resolver.
type Manager struct {
	Store   *Store
	Cookies *Cookies
}

// NewManager returns a Manager over store and cookies.
func NewManager(store *Store, cookies *Cookies) *Manager {
	return &Manager{Store: store, Cookies: cookies}
}

// Resolve classifies the request's session.
func (m *Manager) Resolve(r *http.Request) (State, Session) {
	id, ok := m.Cookies.Read(r)
	if !ok {
		return StateAnonymous, Session{}
	}
	return m.Store.Resolve(r.Context(), id)
}

// Current returns the live session for r without re-verification.  Public
// pages use it to decide what the header shows.
func (m *Manager) Current(r *http.Request) (Session, bool) {
	if s, ok := FromContext(r.Context()); ok {
		return s, true
	}
	id, ok := m.Cookies.Read(r)
	if !ok {
		return Session{}, false
	}
	return m.Store.Get(id)
}

// Login records a verified API login and sets the cookie.
func (m *Manager) Login(w http.ResponseWriter, u api.User, creds api.Credentials) Session {
	sess := m.Store.Login(u, creds)
	m.Cookies.Write(w, sess.ID)
	return sess
}

// Logout ends the request's session, if any, and clears the cookie.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	if id, ok := m.Cookies.Read(r); ok {
		m.Store.Logout(id)
	}
	m.Cookies.Clear(w)
}

// Update edits the profile of the session attached to ctx.
func (m *Manager) Update(ctx context.Context, fn func(*User)) error {
	s, ok := FromContext(ctx)
	if !ok {
		return ErrNoSession
	}
	return m.Store.Update(s.ID, fn)
}
