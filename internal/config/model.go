// internal/config/model.go
//
// Typed configuration model for the forum front-end.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                         – dotenv values,
//   • `conf/global.yaml`                      – primary static file,
//   • `FORUM_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through a SecretSource *before* unmarshalling, so the model never stores
// Vault references, only plain strings.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.  Koanf ignores `yaml` tags
//     unless configured otherwise.
//   • Durations are written as Go duration strings ("15s", "30m").
//   • The `Paths` block is filled at runtime; YAML must not try to set it.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr      string        `koanf:"listen_addr"      validate:"required,hostname_port"`
	ForceHTTPS      bool          `koanf:"force_https"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"gte=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"gte=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}

//
// API section
//

// API describes the remote forum REST API this front-end talks to.
//
// CheckRPS and CheckBurst shape the token bucket that throttles outbound
// email/nickname uniqueness checks across all form sessions.
type API struct {
	BaseURL    string        `koanf:"base_url"    validate:"required,url"`
	Timeout    time.Duration `koanf:"timeout"     validate:"gt=0"`
	RetryMax   int           `koanf:"retry_max"   validate:"gte=0,lte=10"`
	CheckRPS   float64       `koanf:"check_rps"   validate:"gt=0"`
	CheckBurst int           `koanf:"check_burst" validate:"gte=1"`
}

//
// Forms section
//

// Forms holds server-side form session tunables.
type Forms struct {
	MaxSessions int           `koanf:"max_sessions" validate:"gte=1"`
	IdleTTL     time.Duration `koanf:"idle_ttl"     validate:"gt=0"`
	Debounce    time.Duration `koanf:"debounce"     validate:"gte=0"`
	CSRFKey     string        `koanf:"csrf_key"     validate:"required,min=32"`
}

//
// Session section
//

// Session holds the browser session cookie settings.  Secret signs the
// session id; keep it in Vault (`vault:secret/forum#session_secret`).
type Session struct {
	CookieName      string        `koanf:"cookie_name"      validate:"required"`
	Secret          string        `koanf:"secret"           validate:"required,min=32"`
	TTL             time.Duration `koanf:"ttl"              validate:"gt=0"`
	RevalidateAfter time.Duration `koanf:"revalidate_after" validate:"gte=0"`
	SecureCookie    bool          `koanf:"secure_cookie"`
}

//
// Log section
//

// Log configures the zap/lumberjack sink.  Dir is relative to Paths.Root
// unless absolute.
type Log struct {
	Dir   string `koanf:"dir"   validate:"required"`
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // FORUM_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load().
type Config struct {
	HTTP    HTTP    `koanf:"http"`
	API     API     `koanf:"api"`
	Forms   Forms   `koanf:"forms"`
	Session Session `koanf:"session"`
	Log     Log     `koanf:"log"`
	Paths   Paths   `koanf:"-"` // not loaded from config files
}
