// internal/message/flash.go
//
// One-shot flash notices carried across a redirect.
//
// Context
// -------
// A handler that finishes with a redirect (profile saved, password changed,
// account deleted) calls Set before redirecting.  On the next request the
// Flash middleware moves the notice from the cookie into the request context
// and expires the cookie, so the notice renders exactly once.
//
// Notes
// -----
// • The cookie carries a Notice key, never display text.  Unknown keys are
//   dropped, so a forged cookie cannot put arbitrary copy on the page.
// • Oxford commas, two spaces after periods.
//
//------------------------------------------------------------------------------

package message

import (
	"context"
	"net/http"

	"github.com/yanizio/forum/internal/logger"
)

// CookieName is the flash cookie.
const CookieName = "forum_flash"

// Notice is a catalog key.
type Notice string

// Known notices.
const (
	ProfileUpdated  Notice = "profile_updated"
	PasswordChanged Notice = "password_changed"
	AccountDeleted  Notice = "account_deleted"
	PostDeleted     Notice = "post_deleted"
)

var catalog = map[Notice]string{
	ProfileUpdated:  "수정 완료",
	PasswordChanged: "비밀번호가 변경되었습니다.  다시 로그인해주세요.",
	AccountDeleted:  "회원탈퇴가 완료되었습니다.",
	PostDeleted:     "게시글이 삭제되었습니다.",
}

// Text returns the display copy for n, or "" for an unknown key.
func Text(n Notice) string { return catalog[n] }

// Set queues n for the next page the browser loads.
func Set(w http.ResponseWriter, n Notice) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    string(n),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

type flashKey struct{}

// Flash consumes the flash cookie, if any.
func Flash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(CookieName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: CookieName, Value: "", Path: "/", MaxAge: -1})

		text := Text(Notice(ck.Value))
		if text == "" {
			logger.FromContext(r.Context()).Debugw("unknown flash notice dropped", "notice", ck.Value)
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), flashKey{}, text)))
	})
}

// From returns the notice text attached by Flash.
func From(ctx context.Context) string {
	s, _ := ctx.Value(flashKey{}).(string)
	return s
}
