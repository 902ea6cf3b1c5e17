package form

import (
	"errors"
	"testing"
	"time"

	"github.com/yanizio/forum/internal/config"
)

func TestStoreLifecycle(t *testing.T) {
	st := NewStore(config.Forms{MaxSessions: 2, IdleTTL: time.Minute}, nil)
	def := mustDef(t, postYAML)

	a := st.New(def, Values{"title": "hello"})
	if a.Values().Get("title") != "hello" {
		t.Fatal("prefill lost")
	}
	if got, ok := st.Get(a.ID()); !ok || got != a {
		t.Fatal("Get missed fresh session")
	}
	if _, err := st.Lookup("board/other", a.ID()); !errors.Is(err, ErrUnknownForm) {
		t.Fatalf("Lookup wrong form = %v", err)
	}
	if _, ok := st.Get("not-a-uuid"); ok {
		t.Fatal("Get accepted junk id")
	}

	b := st.New(def, nil)
	c := st.New(def, nil) // evicts a (least recently used)
	if _, ok := st.Get(a.ID()); ok {
		t.Fatal("a should have been evicted")
	}
	if err := a.SetField("title", "x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("evicted session not closed: %v", err)
	}

	st.Remove(b.ID())
	if st.Len() != 1 {
		t.Fatalf("Len = %d", st.Len())
	}

	st.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if n := st.Sweep(); n != 1 {
		t.Fatalf("Sweep removed %d", n)
	}
	if _, ok := st.Get(c.ID()); ok {
		t.Fatal("expired session returned")
	}
}
