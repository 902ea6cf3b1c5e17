package form

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/forum/internal/config"
)

func newHandlerFixture(t *testing.T) (*Store, *Session, http.Handler) {
	t.Helper()
	ConfigureCSRF("0123456789abcdef0123456789abcdef")
	st := NewStore(config.Forms{MaxSessions: 10, IdleTTL: time.Minute}, nil)
	sess := st.New(mustDef(t, signupYAML), nil)
	r := chi.NewRouter()
	Routes(r, st)
	return st, sess, r
}

func postField(t *testing.T, h http.Handler, id, token, name, value string) (*httptest.ResponseRecorder, FieldState) {
	t.Helper()
	form := url.Values{"name": {name}, "value": {value}}
	req := httptest.NewRequest(http.MethodPost, "/forms/"+id+"/fields", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-CSRF-Token", token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var fs FieldState
	_ = json.Unmarshal(rec.Body.Bytes(), &fs)
	return rec, fs
}

func TestFieldHandler(t *testing.T) {
	_, sess, h := newHandlerFixture(t)
	tok, _ := GenerateToken(sess.ID())

	rec, fs := postField(t, h, sess.ID(), tok, "nickname", "hello world")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if fs.Errors["nickname"] != MsgNicknameSpace || fs.Valid || fs.State != "idle" {
		t.Fatalf("state = %+v", fs)
	}
	if fs.Errors.Has("email") {
		t.Fatal("untouched field error leaked")
	}

	rec, _ = postField(t, h, sess.ID(), "bogus", "nickname", "x")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("bad token status = %d", rec.Code)
	}
	rec, _ = postField(t, h, sess.ID(), tok, "nope", "x")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/forms/"+sess.ID()+"/fields", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"pending":[]`) {
		t.Fatalf("GET = %d %s", rr.Code, rr.Body)
	}
}

func TestFieldHandlerUnknownSession(t *testing.T) {
	_, _, h := newHandlerFixture(t)
	rec, _ := postField(t, h, "00000000-0000-0000-0000-000000000000", "t", "nickname", "x")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestBindRequestAndRender(t *testing.T) {
	st, sess, _ := newHandlerFixture(t)
	tok, _ := GenerateToken(sess.ID())

	form := url.Values{
		"form_id":          {sess.ID()},
		"csrf_token":       {tok},
		"email":            {"neo@matrix.io"},
		"password":         {"Abcdef1!"},
		"confirm_password": {"Abcdef1?"},
		"nickname":         {"neo"},
	}
	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	got, err := BindRequest(st, "auth/signup", req)
	if err != nil {
		t.Fatalf("BindRequest: %v", err)
	}
	if got != sess || got.Values().Get("nickname") != "neo" {
		t.Fatal("values not applied")
	}

	html, err := RenderForm(sess, RenderOptions{Action: "/signup"})
	if err != nil {
		t.Fatal(err)
	}
	out := string(html)
	for _, want := range []string{`name="form_id" value="` + sess.ID() + `"`, MsgConfirmMismatch, `value="neo"`, `action="/signup"`} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q", want)
		}
	}
	if strings.Contains(out, "Abcdef1!") {
		t.Error("password echoed in markup")
	}

	form.Set("csrf_token", "bad")
	req = httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if _, err := BindRequest(st, "auth/signup", req); err != ErrBadToken {
		t.Fatalf("bad token = %v", err)
	}
}

func TestRenderTextareaKeepsLeadingNewline(t *testing.T) {
	ConfigureCSRF("0123456789abcdef0123456789abcdef")
	sess := NewSession(mustDef(t, postYAML))
	_ = sess.SetField("content", "\nfirst line after a blank one")

	out, err := RenderForm(sess, RenderOptions{Action: "/posts"})
	if err != nil {
		t.Fatal(err)
	}
	want := `<textarea id="fld-content" name="content">` + "\n\nfirst line after a blank one</textarea>"
	if !strings.Contains(string(out), want) {
		t.Fatalf("textarea markup = %s", out)
	}
}
