// Package componenttest wires a component against a fake REST API for
// handler tests.  It plays the role httptest plays for net/http: the real
// api.Client, auth.Manager, form.Store, and view.Engine are built exactly as
// cmd/web builds them, only the API behind them is a test handler.
package componenttest

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/forum/internal/api"
	"github.com/yanizio/forum/internal/auth"
	"github.com/yanizio/forum/internal/component"
	"github.com/yanizio/forum/internal/config"
	"github.com/yanizio/forum/internal/form"
	"github.com/yanizio/forum/internal/message"
	"github.com/yanizio/forum/internal/view"
)

// APICookie is the credential cookie fake APIs hand out at login.
const APICookie = "api_sid"

// Harness is one wired router.
type Harness struct {
	API    *httptest.Server
	Deps   component.Deps
	Router chi.Router
}

// New starts api as the fake REST API and mounts the components built by
// each constructor.
func New(t testing.TB, apiHandler http.Handler, ctors ...func(component.Deps) component.Component) *Harness {
	t.Helper()
	srv := httptest.NewServer(apiHandler)
	t.Cleanup(srv.Close)

	client, err := api.New(config.API{
		BaseURL:    srv.URL,
		Timeout:    2 * time.Second,
		CheckRPS:   1000,
		CheckBurst: 100,
	})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}

	form.ConfigureCSRF(strings.Repeat("c", 32))
	sessCfg := config.Session{
		CookieName:      "forum_session",
		Secret:          strings.Repeat("s", 32),
		TTL:             time.Hour,
		RevalidateAfter: time.Hour,
	}
	deps := component.Deps{
		API:   client,
		Auth:  auth.NewManager(auth.NewStore(sessCfg, client), auth.NewCookies(sessCfg)),
		Forms: form.NewStore(config.Forms{MaxSessions: 100, IdleTTL: time.Hour}, form.NewAPIChecker(client, 1000, 100)),
		Views: view.New(client.ImageURL),
	}

	r := chi.NewRouter()
	r.Use(message.Flash)
	form.Routes(r, deps.Forms)
	reg := component.NewRegistry()
	for _, ctor := range ctors {
		reg.Register(ctor(deps))
	}
	if err := reg.Mount(r, deps); err != nil {
		t.Fatalf("mount: %v", err)
	}
	return &Harness{API: srv, Deps: deps, Router: r}
}

// LoginAs creates an authenticated session for u directly in the store and
// returns the browser cookie.
func (h *Harness) LoginAs(u api.User) *http.Cookie {
	creds := api.Credentials{{Name: APICookie, Value: "tok-" + u.Nickname}}
	rec := httptest.NewRecorder()
	h.Deps.Auth.Login(rec, u, creds)
	return rec.Result().Cookies()[0]
}

// Do serves req and returns the recorder.
func (h *Harness) Do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.Router.ServeHTTP(rec, req)
	return rec
}

// Get is Do for a GET of path.
func (h *Harness) Get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return h.Do(httptest.NewRequest(http.MethodGet, path, nil), cookies...)
}

// Post sends vals url-encoded to path.
func (h *Harness) Post(path string, vals url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(vals.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.Do(req, cookies...)
}

// Upload is one file part of a multipart POST.
type Upload struct {
	Field, Filename, Content string
}

// PostMultipart sends vals and files as multipart/form-data to path.
func (h *Harness) PostMultipart(t testing.TB, path string, vals url.Values, files []Upload, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range vals {
		for _, v := range vs {
			if err := mw.WriteField(k, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write([]byte(f.Content))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return h.Do(req, cookies...)
}

// SubmitMultipart is Submit for forms carrying file inputs.
func (h *Harness) SubmitMultipart(t testing.TB, page, action string, vals url.Values, files []Upload, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	rec := h.Get(page, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s: %d", page, rec.Code)
	}
	return h.PostMultipart(t, action, WithFormMeta(t, rec.Body.String(), action, vals), files, cookies...)
}

// Submit GETs page, copies its form_id and csrf_token into vals, and POSTs
// vals to action.
func (h *Harness) Submit(t testing.TB, page, action string, vals url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	rec := h.Get(page, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s: %d", page, rec.Code)
	}
	return h.Post(action, WithFormMeta(t, rec.Body.String(), action, vals), cookies...)
}

var hiddenRE = regexp.MustCompile(`<input type="hidden" name="([a-z_]+)" value="([^"]*)">`)
var formRE = regexp.MustCompile(`(?s)<form class="forum-form" method="post" action="([^"]*)".*?</form>`)

// WithFormMeta copies the hidden inputs of the form posting to action into a
// copy of vals.
func WithFormMeta(t testing.TB, body, action string, vals url.Values) url.Values {
	t.Helper()
	out := url.Values{}
	for k, v := range vals {
		out[k] = v
	}
	for _, m := range formRE.FindAllStringSubmatch(body, -1) {
		if m[1] != action {
			continue
		}
		for _, hm := range hiddenRE.FindAllStringSubmatch(m[0], -1) {
			if _, set := out[hm[1]]; !set {
				out.Set(hm[1], unescape(hm[2]))
			}
		}
		return out
	}
	t.Fatalf("no form posting to %s in page", action)
	return nil
}

func unescape(s string) string {
	return strings.NewReplacer("&amp;", "&", "&#34;", `"`, "&#39;", "'", "&lt;", "<", "&gt;", ">").Replace(s)
}
