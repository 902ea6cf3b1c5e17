package gate

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yanizio/forum/internal/api"
	"github.com/yanizio/forum/internal/auth"
)

type fixedResolver struct {
	state auth.State
	sess  auth.Session
	calls int
}

func (f *fixedResolver) Resolve(*http.Request) (auth.State, auth.Session) {
	f.calls++
	return f.state, f.sess
}

func TestRequireAuth(t *testing.T) {
	cases := []struct {
		name     string
		state    auth.State
		wantCode int
		wantLoc  string
		ran      bool
	}{
		{"authenticated", auth.StateAuthenticated, http.StatusOK, "", true},
		{"anonymous", auth.StateAnonymous, http.StatusSeeOther, "/login?next=%2Fposts%2F1", false},
		{"unknown", auth.StateUnknown, http.StatusServiceUnavailable, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := &fixedResolver{state: tc.state, sess: auth.Session{ID: "s", LoggedIn: true, User: auth.User{UserID: 9}}}
			var ran bool
			h := RequireAuth(res, "/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ran = true
				if id, ok := auth.UserID(r.Context()); !ok || id != 9 {
					t.Errorf("session missing from context")
				}
			}))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts/1", nil))

			if rec.Code != tc.wantCode {
				t.Fatalf("code = %d", rec.Code)
			}
			if loc := rec.Header().Get("Location"); loc != tc.wantLoc {
				t.Fatalf("Location = %q", loc)
			}
			if ran != tc.ran {
				t.Fatalf("handler ran = %v", ran)
			}
			if tc.state == auth.StateUnknown && rec.Header().Get("Retry-After") != RetryAfter {
				t.Fatal("missing Retry-After")
			}
			if res.calls != 1 {
				t.Fatalf("resolver called %d times", res.calls)
			}
		})
	}
}

func TestRequireAuthPostRedirectsPlain(t *testing.T) {
	h := RequireAuth(&fixedResolver{state: auth.StateAnonymous}, "/login")(http.NotFoundHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/create-post", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestLoadingComposes(t *testing.T) {
	res := &fixedResolver{state: auth.StateAuthenticated, sess: auth.Session{LoggedIn: true}}
	fetch := func(r *http.Request) (string, error) {
		if r.URL.Query().Get("id") == "missing" {
			return "", &api.StatusError{Code: http.StatusNotFound}
		}
		if r.URL.Query().Get("id") == "down" {
			return "", errors.New("dial tcp")
		}
		return "post body", nil
	}
	render := func(w http.ResponseWriter, _ *http.Request, data string) { _, _ = w.Write([]byte(data)) }
	h := RequireAuth(res, "/login")(Loading[string](fetch, render, nil))

	for q, want := range map[string]int{"ok": 200, "missing": 404, "down": 502} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts?id="+q, nil))
		if rec.Code != want {
			t.Errorf("%s: code = %d", q, rec.Code)
		}
		if q == "ok" && rec.Body.String() != "post body" {
			t.Errorf("body = %q", rec.Body)
		}
	}

	// Anonymous never reaches fetch.
	anon := RequireAuth(&fixedResolver{state: auth.StateAnonymous}, "/login")(Loading[string](func(*http.Request) (string, error) {
		t.Fatal("fetch ran for anonymous request")
		return "", nil
	}, render, nil))
	anon.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/posts/1", nil))
}

func TestSafeNext(t *testing.T) {
	for in, want := range map[string]string{
		"":               "/",
		"/posts/1":       "/posts/1",
		"//evil.example": "/",
		"https://x.y":    "/",
		"/\\evil":        "/",
	} {
		if got := SafeNext(in, "/"); got != want {
			t.Errorf("SafeNext(%q) = %q", in, got)
		}
	}
}
