// internal/auth/store.go
//
// Process-wide session store.
//
// Context
// -------
// The Store is constructed once in cmd/web and injected into the components
// and the auth gate; nothing reaches it through package globals.  Its
// lifecycle transitions are explicit:
//
//   • Login   – init: a verified API login creates a session.
//   • Logout  – teardown: the session is removed.
//   • Update  – profile edits (nickname, picture) after a successful PATCH.
//   • Resolve – per request: Anonymous, Authenticated, or Unknown.
//
// Re-verification
// ---------------
// Sessions older than `session.revalidate_after` are re-checked against
// GET /users/{id} with the stored credentials.  Concurrent requests for the
// same session share one check (singleflight).  A 401 or 404 revokes the
// session; a transport failure yields StateUnknown and leaves the session
// intact so a blip at the API does not log everyone out.
//
// Notes
// -----
// • Sessions are in memory.  A restart logs every browser out.
// • Oxford commas, two spaces after periods.

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/forum/internal/api"
	"github.com/yanizio/forum/internal/config"
	"github.com/yanizio/forum/internal/logger"
	"github.com/yanizio/forum/internal/metrics"
)

// Verifier re-reads the user behind a session.  *api.Client satisfies it.
type Verifier interface {
	GetUser(ctx context.Context, creds api.Credentials, id int64) (api.User, error)
}

// Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	verifier   Verifier
	ttl        time.Duration
	revalidate time.Duration
	group      singleflight.Group
	now        func() time.Time
}

// NewStore builds a Store from the `session` config section.
func NewStore(cfg config.Session, v Verifier) *Store {
	return &Store{
		sessions:   make(map[string]*Session),
		verifier:   v,
		ttl:        cfg.TTL,
		revalidate: cfg.RevalidateAfter,
		now:        time.Now,
	}
}

// Login creates a session for u and returns a copy of it.
func (s *Store) Login(u api.User, creds api.Credentials) Session {
	now := s.now()
	sess := &Session{
		ID:          uuid.NewString(),
		User:        UserFromAPI(u),
		Credentials: creds,
		LoggedIn:    true,
		CreatedAt:   now,
		VerifiedAt:  now,
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return *sess
}

// Logout removes the session.  Unknown ids are ignored.
func (s *Store) Logout(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Get returns a copy of a live session.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok || s.expired(sess) {
		return Session{}, false
	}
	return *sess, true
}

// Update applies fn to the session's user.
func (s *Store) Update(id string, fn func(*User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || s.expired(sess) {
		return ErrNoSession
	}
	fn(&sess.User)
	return nil
}

// Resolve classifies id, re-verifying it when due.
func (s *Store) Resolve(ctx context.Context, id string) (State, Session) {
	if id == "" {
		return StateAnonymous, Session{}
	}

	s.mu.RLock()
	sess, ok := s.sessions[id]
	var snap Session
	if ok {
		snap = *sess
	}
	s.mu.RUnlock()

	if !ok {
		return StateAnonymous, Session{}
	}
	if s.expired(&snap) {
		s.Logout(id)
		return StateAnonymous, Session{}
	}
	if s.verifier == nil || s.revalidate <= 0 || s.now().Sub(snap.VerifiedAt) < s.revalidate {
		return StateAuthenticated, snap
	}

	v, _, _ := s.group.Do(id, func() (any, error) {
		return s.verify(ctx, snap), nil
	})
	res := v.(verdict)
	return res.state, res.sess
}

type verdict struct {
	state State
	sess  Session
}

func (s *Store) verify(ctx context.Context, snap Session) verdict {
	log := logger.FromContext(ctx)
	u, err := s.verifier.GetUser(ctx, snap.Credentials, snap.User.UserID)
	switch {
	case err == nil:
	case api.IsUnauthorized(err) || api.IsNotFound(err):
		s.Logout(snap.ID)
		metrics.AuthGate.WithLabelValues("revoked").Inc()
		log.Infow("session revoked by api", "user_id", snap.User.UserID, "err", err)
		return verdict{state: StateAnonymous}
	default:
		log.Warnw("session re-verification failed", "user_id", snap.User.UserID, "err", err)
		return verdict{state: StateUnknown, sess: snap}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[snap.ID]
	if !ok {
		return verdict{state: StateAnonymous} // logged out meanwhile
	}
	fresh := UserFromAPI(u)
	if fresh.UserID == 0 {
		fresh.UserID = sess.User.UserID
	}
	sess.User = fresh
	sess.VerifiedAt = s.now()
	return verdict{state: StateAuthenticated, sess: *sess}
}

// Sweep drops expired sessions and returns how many it removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx ends.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}

func (s *Store) expired(sess *Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.CreatedAt) > s.ttl
}
