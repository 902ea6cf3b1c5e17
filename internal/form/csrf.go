// internal/form/csrf.go
//
// Forms subsystem: stateless CSRF token utilities.
//
// Context
//   Every rendered form embeds a hidden `csrf_token` input.  The server
//   verifies it on POST to ensure the request came from a form it rendered.
//   The token is stateless and bound to the form session id:
//
//      base64url( nonce | unixMicro | HMAC_SHA256(key, nonce+unixMicro+formID) )
//
//   •  nonce – 16 random bytes.
//   •  unixMicro – microseconds since Unix epoch, 8 bytes, big-endian.
//   •  HMAC – keyed with `forms.csrf_key`, so tokens survive restarts and work
//      across replicas.
//
// Workflow
//   •  ConfigureCSRF(key)            → once at boot, from config.
//   •  GenerateToken(formID)         → token string for the renderer.
//   •  VerifyToken(tok, formID)      → constant-time verify; false on failure.
//
//------------------------------------------------------------------------------

package form

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	tokenBytes = 16 + 8 + sha256.Size // nonce + ts + sig
	maxAge     = 2 * time.Hour        // token valid window
)

var (
	secretMu  sync.RWMutex
	secretKey []byte
)

// ConfigureCSRF installs the HMAC key.  Call once during boot.
func ConfigureCSRF(key string) {
	secretMu.Lock()
	secretKey = []byte(key)
	secretMu.Unlock()
}

// GenerateToken creates a new CSRF token bound to formID.
func GenerateToken(formID string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(time.Now().UnixMicro()))

	buf := make([]byte, 0, tokenBytes)
	buf = append(buf, nonce...)
	buf = append(buf, ts...)
	buf = append(buf, sign(nonce, ts, formID)...)

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// VerifyToken returns true if tok passes HMAC and age checks for formID.
func VerifyToken(tok, formID string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil || len(raw) != tokenBytes {
		return false
	}

	nonce := raw[:16]
	tsBytes := raw[16:24]
	sig := raw[24:]

	issued := time.UnixMicro(int64(binary.BigEndian.Uint64(tsBytes)))
	if time.Since(issued) > maxAge || time.Until(issued) > time.Minute {
		// Future timestamp (clock skew) or older than maxAge.
		return false
	}

	return hmac.Equal(sig, sign(nonce, tsBytes, formID))
}

func sign(nonce, ts []byte, formID string) []byte {
	mac := hmac.New(sha256.New, fetchSecret())
	mac.Write(nonce)
	mac.Write(ts)
	mac.Write([]byte(formID))
	return mac.Sum(nil)
}

// fetchSecret returns the configured key.  When none was configured (tests,
// tools) a random per-process key is generated and a warning logged.
func fetchSecret() []byte {
	secretMu.RLock()
	k := secretKey
	secretMu.RUnlock()
	if k != nil {
		return k
	}

	secretMu.Lock()
	defer secretMu.Unlock()
	if secretKey == nil {
		secretKey = make([]byte, 32)
		_, _ = rand.Read(secretKey)
		zap.S().Warnw("csrf key not configured, using ephemeral key")
	}
	return secretKey
}
