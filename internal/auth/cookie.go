// internal/auth/cookie.go
//
// Signed session cookie.
//
// The cookie carries only the session id plus an HMAC-SHA256 tag keyed with
// `session.secret`:
//
//	<uuid>.<base64url(HMAC(secret, uuid))>
//
// Nothing about the user travels to the browser.  A forged or truncated value
// reads as "no cookie".

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/yanizio/forum/internal/config"
)

// Cookies reads and writes the session cookie.
type Cookies struct {
	name   string
	secret []byte
	secure bool
	ttl    time.Duration
}

// NewCookies builds the codec from the `session` config section.
func NewCookies(cfg config.Session) *Cookies {
	return &Cookies{name: cfg.CookieName, secret: []byte(cfg.Secret), secure: cfg.SecureCookie, ttl: cfg.TTL}
}

// Write sets the cookie for id.
func (c *Cookies) Write(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    id + "." + c.sign(id),
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(c.ttl.Seconds()),
	})
}

// Read returns the verified session id carried by r.
func (c *Cookies) Read(r *http.Request) (string, bool) {
	ck, err := r.Cookie(c.name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	id, tag, ok := strings.Cut(ck.Value, ".")
	if !ok || id == "" {
		return "", false
	}
	if !hmac.Equal([]byte(tag), []byte(c.sign(id))) {
		return "", false
	}
	return id, true
}

// Clear expires the cookie.
func (c *Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *Cookies) sign(id string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
