// internal/form/validators.go
//
// Forms subsystem: field validator registry.
//
// Context
//   A validator judges one field's value, optionally looking at its siblings,
//   and returns the user-facing message or "" when the value is acceptable.
//   Validators are pure: no network, no clock, no shared state.  Form
//   definitions reference them by name (`validators: [nickname]`), and the
//   FormSession runs them on every change and again at submit.
//
// Rules
//   •  Email shape is `local@domain.tld` without whitespace.
//   •  Passwords are 8 to 20 characters from [A-Za-z0-9@$!%*?&] with at least
//      one lowercase letter, one uppercase letter, one digit, and one of
//      `@$!%*?&`.
//   •  Nicknames are checked empty, then whitespace, then length, so a long
//      nickname with a space reports the space.
//   •  Lengths count runes, not bytes, through go-playground/validator tags.
//
//------------------------------------------------------------------------------

package form

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Validator returns "" when value is valid, otherwise the message to show.
type Validator func(value string, all Values) string

// Factory builds the validator for one field.  Most rules ignore the field;
// confirm_password reads FieldDef.Match to find its partner.
type Factory func(f FieldDef) Validator

// -----------------------------------------------------------------------------
// Messages
// -----------------------------------------------------------------------------

const (
	MsgEmailRequired     = "*이메일을 입력해주세요."
	MsgEmailFormat       = "*올바른 이메일 주소 형식을 입력해주세요. (예: example@example.com)"
	MsgPasswordRequired  = "*비밀번호를 입력해주세요."
	MsgPasswordRule      = "*비밀번호는 8자 이상, 20자 이하이며, 대문자, 소문자, 숫자, 특수문자를 각각 최소 1개 포함해야 합니다."
	MsgPasswordShort     = "*비밀번호가 짧습니다."
	MsgPasswordLong      = "*비밀번호가 너무 깁니다."
	MsgConfirmRequired   = "*비밀번호를 한번 더 입력해주세요."
	MsgConfirmMismatch   = "*비밀번호가 다릅니다."
	MsgNicknameRequired  = "*닉네임을 입력해주세요."
	MsgNicknameSpace     = "*띄어쓰기를 없애주세요."
	MsgNicknameTooLong   = "*닉네임은 최대 10자까지 작성 가능합니다."
	MsgTitleRequired     = "*제목을 입력해주세요."
	MsgTitleTooLong      = "*제목은 26자 이하이어야 합니다."
	MsgContentRequired   = "*내용을 입력해주세요."
	MsgCommentRequired   = "*댓글을 입력해주세요."
	MsgProfileImageReq   = "*프로필 사진을 등록해주세요."
	passwordSpecials     = "@$!%*?&"
	defaultPasswordField = "password"
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	lengths = validator.New()
)

// runesOK applies a go-playground/validator length tag (`max=26`,
// `min=8,max=20`) to s.  String lengths in those tags are rune counts.
func runesOK(s, tag string) bool {
	return lengths.Var(s, tag) == nil
}

// -----------------------------------------------------------------------------
// Built-in rules
// -----------------------------------------------------------------------------

// Email requires a non-empty `local@domain.tld` address.
func Email(v string, _ Values) string {
	switch {
	case v == "":
		return MsgEmailRequired
	case !emailRe.MatchString(v):
		return MsgEmailFormat
	}
	return ""
}

// LoginEmail is Email with a single message for both failures, as on the
// login page.
func LoginEmail(v string, _ Values) string {
	if v == "" || !emailRe.MatchString(v) {
		return MsgEmailFormat
	}
	return ""
}

// Password enforces the signup complexity rule.
func Password(v string, _ Values) string {
	if v == "" {
		return MsgPasswordRequired
	}
	if !runesOK(v, "min=8,max=20") || !passwordComplex(v) {
		return MsgPasswordRule
	}
	return ""
}

func passwordComplex(v string) bool {
	var lower, upper, digit, special bool
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return false
		}
	}
	return lower && upper && digit && special
}

// LoginPassword only checks presence and length; the server judges the rest.
func LoginPassword(v string, _ Values) string {
	switch {
	case v == "":
		return MsgPasswordRequired
	case !runesOK(v, "min=8"):
		return MsgPasswordShort
	case !runesOK(v, "max=20"):
		return MsgPasswordLong
	}
	return ""
}

// MatchField returns a confirm validator comparing against field other.
func MatchField(other string) Validator {
	return func(v string, all Values) string {
		switch {
		case v == "":
			return MsgConfirmRequired
		case v != all.Get(other):
			return MsgConfirmMismatch
		}
		return ""
	}
}

// Nickname checks empty, then whitespace, then length.
func Nickname(v string, _ Values) string {
	switch {
	case v == "":
		return MsgNicknameRequired
	case strings.IndexFunc(v, unicode.IsSpace) >= 0:
		return MsgNicknameSpace
	case !runesOK(v, "max=10"):
		return MsgNicknameTooLong
	}
	return ""
}

// PostTitle requires a title of at most 26 characters.
func PostTitle(v string, _ Values) string {
	switch {
	case v == "":
		return MsgTitleRequired
	case !runesOK(v, "max=26"):
		return MsgTitleTooLong
	}
	return ""
}

// PostContent requires a body.
func PostContent(v string, _ Values) string {
	if v == "" {
		return MsgContentRequired
	}
	return ""
}

// Comment requires non-blank text.
func Comment(v string, _ Values) string {
	if strings.TrimSpace(v) == "" {
		return MsgCommentRequired
	}
	return ""
}

// ProfileImage requires an uploaded picture.  The value is the filename
// recorded by BindRequest.
func ProfileImage(v string, _ Values) string {
	if v == "" {
		return MsgProfileImageReq
	}
	return ""
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// Registry maps validator names to factories.  Safe for concurrent use.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Factory)}
}

// Register adds a field-independent validator under name.
func (r *Registry) Register(name string, v Validator) {
	r.RegisterFactory(name, func(FieldDef) Validator { return v })
}

// RegisterFactory adds a validator that depends on its field definition.
func (r *Registry) RegisterFactory(name string, fn Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[name] = fn
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.m[name]
	return ok
}

// Build returns the validator name bound to field f.
func (r *Registry) Build(name string, f FieldDef) (Validator, error) {
	r.mu.RLock()
	fn, ok := r.m[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown validator %q on field %q", name, f.Name)
	}
	return fn(f), nil
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// DefaultRegistry returns the process-wide registry holding every built-in
// validator.  Callers may Register additional rules on it at start-up.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		r := NewRegistry()
		r.Register("email", Email)
		r.Register("login_email", LoginEmail)
		r.Register("password", Password)
		r.Register("login_password", LoginPassword)
		r.RegisterFactory("confirm_password", func(f FieldDef) Validator {
			other := f.Match
			if other == "" {
				other = defaultPasswordField
			}
			return MatchField(other)
		})
		r.Register("nickname", Nickname)
		r.Register("post_title", PostTitle)
		r.Register("post_content", PostContent)
		r.Register("comment", Comment)
		r.Register("profile_image", ProfileImage)
		defaultReg = r
	})
	return defaultReg
}
