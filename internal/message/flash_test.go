package message

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFlashRoundTrip(t *testing.T) {
	set := httptest.NewRecorder()
	Set(set, ProfileUpdated)
	cookies := set.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != string(ProfileUpdated) {
		t.Fatalf("cookies = %v", cookies)
	}

	var got string
	h := Flash(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) { got = From(r.Context()) }))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got != Text(ProfileUpdated) {
		t.Fatalf("From = %q", got)
	}
	cleared := rec.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Fatalf("flash cookie not expired: %v", cleared)
	}
}

func TestFlashUnknownDropped(t *testing.T) {
	var got string
	h := Flash(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) { got = From(r.Context()) }))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "<script>"})
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "" {
		t.Fatalf("From = %q", got)
	}
}

func TestFromEmptyContext(t *testing.T) {
	if s := From(httptest.NewRequest(http.MethodGet, "/", nil).Context()); s != "" {
		t.Fatalf("From = %q", s)
	}
}
