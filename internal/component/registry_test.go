package component

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

type stub struct {
	name    string
	initErr error
	inited  bool
}

func (s *stub) Name() string { return s.name }
func (s *stub) Routes(r chi.Router) {
	r.Get("/"+s.name, func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(s.name)) })
}
func (s *stub) Init(Deps) error { s.inited = true; return s.initErr }

func TestMountAddsEveryComponent(t *testing.T) {
	reg := NewRegistry()
	a, b := &stub{name: "a"}, &stub{name: "b"}
	reg.Register(b)
	reg.Register(a)

	if all := reg.All(); all[0].Name() != "a" || all[1].Name() != "b" {
		t.Fatalf("All not sorted: %v", all)
	}

	r := chi.NewRouter()
	if err := reg.Mount(r, Deps{}); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+name, nil))
		if rec.Body.String() != name {
			t.Errorf("/%s = %q", name, rec.Body)
		}
	}
	if !a.inited || !b.inited {
		t.Fatal("Init not called")
	}
}

func TestMountStopsOnInitError(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("boom")
	reg.Register(&stub{name: "bad", initErr: boom})
	if err := reg.Mount(chi.NewRouter(), Deps{}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stub{name: "x"})
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	reg.Register(&stub{name: "x"})
}
