package account

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/forum/internal/api"
	"github.com/yanizio/forum/internal/component"
	"github.com/yanizio/forum/internal/component/componenttest"
	"github.com/yanizio/forum/internal/form"
	"github.com/yanizio/forum/internal/message"
)

type fakeAPI struct {
	mu     sync.Mutex
	calls  []string
	bodies []map[string]string
}

func (f *fakeAPI) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var m map[string]string
		_ = json.NewDecoder(r.Body).Decode(&m)
		f.bodies = append(f.bodies, m)
	}
}

func (f *fakeAPI) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (f *fakeAPI) lastBody() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bodies) == 0 {
		return nil
	}
	return f.bodies[len(f.bodies)-1]
}

func (f *fakeAPI) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.record(r)
			if strings.HasPrefix(r.URL.Path, "/users/check-") {
				next.ServeHTTP(w, r)
				return
			}
			if ck, err := r.Cookie(componenttest.APICookie); err != nil || ck.Value != "tok-nick" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	ok := func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"message":"ok"}`)) }
	r.Get("/users/check-nickname", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("nickname") == "taken" {
			_, _ = w.Write([]byte(`{"message":"이미 사용 중인 닉네임입니다."}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":"사용 가능한 닉네임입니다."}`))
	})
	r.Patch("/users/{id}", ok)
	r.Delete("/users/{id}", ok)
	r.Patch("/users/{id}/password", ok)
	return r
}

func setup(t *testing.T) (*componenttest.Harness, *fakeAPI, *http.Cookie) {
	t.Helper()
	f := &fakeAPI{}
	h := componenttest.New(t, f.routes(), func(d component.Deps) component.Component { return New(d) })
	ck := h.LoginAs(api.User{UserID: 7, Email: "a@b.co", Nickname: "nick", ProfileImage: "me.png"})
	return h, f, ck
}

func TestAnonymousRedirected(t *testing.T) {
	h, _, _ := setup(t)
	for _, path := range []string{"/edit-profile", "/change-password"} {
		rec := h.Get(path)
		if rec.Code != http.StatusSeeOther || !strings.HasPrefix(rec.Header().Get("Location"), "/login") {
			t.Errorf("%s: %d %q", path, rec.Code, rec.Header().Get("Location"))
		}
	}
}

func TestProfilePrefilled(t *testing.T) {
	h, _, ck := setup(t)
	rec := h.Get("/edit-profile", ck)
	body := rec.Body.String()
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	for _, want := range []string{`value="nick"`, "a@b.co", "/images/profile/me.png", `action="/edit-profile/delete"`} {
		if !strings.Contains(body, want) {
			t.Errorf("profile page missing %q", want)
		}
	}
}

func TestProfileUnchangedNicknameSkipsCheck(t *testing.T) {
	h, f, ck := setup(t)
	rec := h.Submit(t, "/edit-profile", "/edit-profile", url.Values{"nickname": {"nick"}}, ck)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if f.called("GET /users/check-nickname") {
		t.Error("own nickname sent for a uniqueness check")
	}
	body := f.lastBody()
	if body["nickname"] != "nick" || body["profile_image"] != "me.png" {
		t.Fatalf("update body = %v", body)
	}
}

func TestProfileRenameRefreshesSession(t *testing.T) {
	h, f, ck := setup(t)
	rec := h.Submit(t, "/edit-profile", "/edit-profile", url.Values{"nickname": {"newnick"}}, ck)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("code = %d body = %s", rec.Code, rec.Body.String())
	}
	if !f.called("GET /users/check-nickname") || !f.called("PATCH /users/7") {
		t.Fatal("expected check then update")
	}
	if !strings.Contains(h.Get("/edit-profile", ck).Body.String(), `value="newnick"`) {
		t.Error("session user not refreshed")
	}
}

func TestProfileTakenNickname(t *testing.T) {
	h, f, ck := setup(t)
	rec := h.Submit(t, "/edit-profile", "/edit-profile", url.Values{"nickname": {"taken"}}, ck)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), form.MsgNicknameTaken) {
		t.Error("taken message missing")
	}
	if f.called("PATCH /users/7") {
		t.Fatal("update sent for a taken nickname")
	}
}

func TestChangePasswordLogsOut(t *testing.T) {
	h, f, ck := setup(t)

	rec := h.Submit(t, "/change-password", "/change-password", url.Values{
		"password":         {"Passw0rd!"},
		"confirm_password": {"Passw0rd!"},
	}, ck)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if f.lastBody()["new_password"] != "Passw0rd!" {
		t.Fatalf("body = %v", f.lastBody())
	}
	if rec := h.Get("/change-password", ck); rec.Code != http.StatusSeeOther {
		t.Fatalf("session survived password change: %d", rec.Code)
	}
}

func TestChangePasswordMismatch(t *testing.T) {
	h, f, ck := setup(t)
	rec := h.Submit(t, "/change-password", "/change-password", url.Values{
		"password":         {"Passw0rd!"},
		"confirm_password": {"Passw0rd?"},
	}, ck)
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), form.MsgConfirmMismatch) {
		t.Fatalf("code = %d", rec.Code)
	}
	if f.called("PATCH /users/7/password") {
		t.Fatal("password changed despite mismatch")
	}
}

func TestDeleteAccount(t *testing.T) {
	h, f, ck := setup(t)

	if rec := h.Post("/edit-profile/delete", url.Values{"csrf_token": {"bad"}}, ck); rec.Code != http.StatusForbidden {
		t.Fatalf("bad token: code = %d", rec.Code)
	}
	tok, _ := form.GenerateToken(DeleteFormID)
	rec := h.Post("/edit-profile/delete", url.Values{"csrf_token": {tok}}, ck)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if !f.called("DELETE /users/7") {
		t.Fatal("delete not sent")
	}
	if !hasCookie(rec.Result().Cookies(), message.CookieName) {
		t.Error("no flash notice after deletion")
	}
	if rec := h.Get("/edit-profile", ck); rec.Code != http.StatusSeeOther {
		t.Fatal("session survived account deletion")
	}
}

func hasCookie(cs []*http.Cookie, name string) bool {
	for _, c := range cs {
		if c.Name == name && c.MaxAge >= 0 {
			return true
		}
	}
	return false
}
