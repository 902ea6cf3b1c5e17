// internal/form/store.go
//
// Forms subsystem: server-side FormSession store.
//
// Context
//   Every rendered form owns a FormSession identified by a random UUID that
//   travels in the hidden `form_id` input.  The Store keeps sessions in a
//   bounded LRU and expires the ones left idle longer than `forms.idle_ttl`.
//   Evicted and expired sessions are closed so their pending checks stop.
//
// Notes
//   •  Lookups refresh recency; the idle clock is refreshed by the session
//      itself whenever it is read or written.
//   •  Run starts the janitor; cmd/web ties it to the server context.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yanizio/forum/internal/cache"
	"github.com/yanizio/forum/internal/config"
	"github.com/yanizio/forum/internal/metrics"
)

// Store is safe for concurrent use.
type Store struct {
	lru      *cache.LRU[string, *Session]
	ttl      time.Duration
	debounce time.Duration
	checker  UniquenessChecker
	now      func() time.Time
}

// NewStore builds a Store from the `forms` config section.
func NewStore(cfg config.Forms, checker UniquenessChecker) *Store {
	st := &Store{
		lru:      cache.New[string, *Session](cfg.MaxSessions),
		ttl:      cfg.IdleTTL,
		debounce: cfg.Debounce,
		checker:  checker,
		now:      time.Now,
	}
	st.lru.OnEvict(func(_ string, s *Session) {
		s.Close()
		metrics.ActiveFormSessions.Dec()
	})
	return st
}

// New creates and stores a session for def.  prefill may be nil.
func (st *Store) New(def *FormDef, prefill Values) *Session {
	opts := []Option{WithID(uuid.NewString()), WithDebounce(st.debounce)}
	if st.checker != nil {
		opts = append(opts, WithChecker(st.checker))
	}
	if len(prefill) > 0 {
		opts = append(opts, WithPrefill(prefill))
	}
	s := NewSession(def, opts...)
	st.lru.Add(s.ID(), s)
	metrics.ActiveFormSessions.Inc()
	return s
}

// Get returns the live session for id.  Expired sessions are removed and
// reported as missing.
func (st *Store) Get(id string) (*Session, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	s, ok := st.lru.Get(id)
	if !ok {
		return nil, false
	}
	if st.expired(s) {
		st.lru.Remove(id)
		return nil, false
	}
	return s, true
}

// Lookup is Get that also checks the session belongs to formID.
func (st *Store) Lookup(formID, id string) (*Session, error) {
	s, ok := st.Get(id)
	if !ok || s.Def().ID != formID {
		return nil, ErrUnknownForm
	}
	return s, nil
}

// Remove closes and forgets the session.
func (st *Store) Remove(id string) { st.lru.Remove(id) }

// Len reports the number of stored sessions.
func (st *Store) Len() int { return st.lru.Len() }

// Sweep removes every expired session and returns how many it removed.
func (st *Store) Sweep() int {
	var stale []string
	st.lru.Each(func(id string, s *Session) {
		if st.expired(s) {
			stale = append(stale, id)
		}
	})
	for _, id := range stale {
		st.lru.Remove(id)
	}
	return len(stale)
}

// Run sweeps every interval until ctx ends.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st.Sweep()
		}
	}
}

func (st *Store) expired(s *Session) bool {
	return st.ttl > 0 && st.now().Sub(s.LastUsed()) > st.ttl
}
