// components/auth/auth.go
//
// Authentication component: login, signup, and logout.
//
// Context
// -------
// Login and signup are ordinary FormSessions.  The GET handler creates a
// session and renders it; the POST handler binds the body to the same
// session (form_id), then Submit validates, waits for the email and nickname
// uniqueness checks, and calls the REST API exactly once.  A failed API call
// leaves the session Failed so the user can correct and resubmit.
//
//   • Login success   – the API's cookies are captured in an auth.Session and
//                       the browser is sent to ?next= (or "/").
//   • Signup success  – the required profile image is uploaded first, then the
//                       account is created and the browser goes to /login.
//                       A missing image fails validation like any other field.
//   • Logout          – POST only, CSRF-checked; the session is dropped.
//
//------------------------------------------------------------------------------

package auth

import (
	"context"
	"embed"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/forum/internal/api"
	"github.com/yanizio/forum/internal/component"
	"github.com/yanizio/forum/internal/form"
	"github.com/yanizio/forum/internal/gate"
	"github.com/yanizio/forum/internal/logger"
	"github.com/yanizio/forum/internal/view"
)

//go:embed forms/*.yaml
var formsFS embed.FS

//go:embed templates/*.html
var templatesFS embed.FS

var views = view.Source{Name: "auth", FS: templatesFS}

// Form ids.
const (
	LoginForm  = "auth/login"
	SignupForm = "auth/signup"
)

// Product copy.
const (
	MsgLoginFailed  = "*아이디 또는 비밀번호를 확인해주세요."
	MsgLoginError   = "*로그인 중 오류가 발생했습니다."
	MsgSignupError  = "*회원가입 중 오류가 발생했습니다."
	MsgUploadFailed = "*사진 업로드 중 오류가 발생했습니다."
	MsgSignedUp     = "회원가입이 완료되었습니다.  로그인해주세요."
)

// Compile-time assertion: *Component satisfies component.Component.
var _ component.Component = (*Component)(nil)

// Component encapsulates login, signup, and logout.
type Component struct {
	deps component.Deps
}

// New returns the auth component.
func New(deps component.Deps) *Component { return &Component{deps: deps} }

/*────────────────── component.Component methods ───────────────────────────*/

// Name returns the canonical component key.
func (c *Component) Name() string { return "auth" }

// Init registers the component's forms.
func (c *Component) Init(component.Deps) error {
	return form.RegisterForms(formsFS, form.DefaultRegistry())
}

// Routes adds the auth pages to r.
func (c *Component) Routes(r chi.Router) {
	r.Get("/login", c.getLogin)
	r.Post("/login", c.postLogin)
	r.Get("/signup", c.getSignup)
	r.Post("/signup", c.postSignup)
	r.Post("/logout", c.postLogout)
}

/*──────────────────────────── Login ────────────────────────────────────────*/

type loginResult struct {
	user  api.User
	creds api.Credentials
}

func (c *Component) getLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := c.deps.Auth.Current(r); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	sess := c.deps.Forms.New(form.MustFormDef(LoginForm), nil)
	notice := ""
	if r.URL.Query().Get("signed_up") == "1" {
		notice = MsgSignedUp
	}
	c.renderLogin(w, r, http.StatusOK, sess, r.URL.Query().Get("next"), notice)
}

func (c *Component) postLogin(w http.ResponseWriter, r *http.Request) {
	next := gate.SafeNext(r.PostFormValue("next"), "/")
	sess, status, ok := c.deps.Bind(r, LoginForm)
	if sess == nil {
		c.deps.Views.Error(w, r, status, c.deps.Page(r, "", nil), component.MsgUnavailable)
		return
	}
	if !ok {
		c.renderLogin(w, r, status, sess, next, "")
		return
	}

	res, err := form.SubmitValue(r.Context(), sess, func(ctx context.Context, v form.Values) (loginResult, error) {
		u, creds, err := c.deps.API.Login(ctx, v.Get("email"), v.Get("password"))
		return loginResult{u, creds}, err
	})
	switch {
	case err == nil:
	case errors.Is(err, form.ErrSubmitted):
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	case isCredentialError(err):
		sess.SetFormError(MsgLoginFailed)
		c.renderLogin(w, r, http.StatusUnauthorized, sess, next, "")
		return
	default:
		status, _ := c.deps.Outcome(w, r, sess, err, MsgLoginError)
		c.renderLogin(w, r, status, sess, next, "")
		return
	}

	c.deps.Forms.Remove(sess.ID())
	c.deps.Auth.Login(w, res.user, res.creds)
	logger.FromContext(r.Context()).Infow("user logged in", "user_id", res.user.UserID)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// isCredentialError reports an API rejection of the email/password pair.
func isCredentialError(err error) bool {
	se, ok := api.AsStatusError(err)
	return ok && (se.Code == http.StatusUnauthorized || se.Code == http.StatusBadRequest || se.Code == http.StatusNotFound)
}

func (c *Component) renderLogin(w http.ResponseWriter, r *http.Request, status int, sess *form.Session, next, notice string) {
	opts := form.RenderOptions{Action: "/login"}
	if next = gate.SafeNext(next, ""); next != "" {
		opts.Hidden = map[string]string{"next": next}
	}
	c.deps.RenderForm(w, r, status, views, "login", "로그인", sess, opts, notice)
}

/*──────────────────────────── Signup ───────────────────────────────────────*/

func (c *Component) getSignup(w http.ResponseWriter, r *http.Request) {
	sess := c.deps.Forms.New(form.MustFormDef(SignupForm), nil)
	c.renderSignup(w, r, http.StatusOK, sess)
}

func (c *Component) postSignup(w http.ResponseWriter, r *http.Request) {
	sess, status, ok := c.deps.Bind(r, SignupForm)
	if sess == nil {
		c.deps.Views.Error(w, r, status, c.deps.Page(r, "", nil), component.MsgUnavailable)
		return
	}
	if !ok {
		c.renderSignup(w, r, status, sess)
		return
	}

	err := sess.Submit(r.Context(), func(ctx context.Context, v form.Values) error {
		filename, err := c.uploadProfile(ctx, r)
		if err != nil {
			return err
		}
		return c.deps.API.Signup(ctx, api.SignupRequest{
			Email:        v.Get("email"),
			Password:     v.Get("password"),
			Nickname:     v.Get("nickname"),
			ProfileImage: filename,
		})
	})
	switch {
	case err == nil, errors.Is(err, form.ErrSubmitted):
		c.deps.Forms.Remove(sess.ID())
		http.Redirect(w, r, "/login?signed_up=1", http.StatusSeeOther)
		return
	case errors.Is(err, errUpload):
		sess.SetFormError(MsgUploadFailed)
		c.renderSignup(w, r, http.StatusBadGateway, sess)
		return
	case api.IsConflict(err):
		field, msg := conflictField(api.Message(err))
		sess.SetServerError(field, msg)
		c.renderSignup(w, r, http.StatusConflict, sess)
		return
	}
	status, _ = c.deps.Outcome(w, r, sess, err, MsgSignupError)
	c.renderSignup(w, r, status, sess)
}

var errUpload = errors.New("profile image upload failed")

// uploadProfile sends the profile picture and returns its filename.  The
// profile_image validator has already rejected a missing file.
func (c *Component) uploadProfile(ctx context.Context, r *http.Request) (string, error) {
	f, hdr, ok := form.File(r, "profile_image")
	if !ok {
		return "", nil
	}
	defer f.Close()
	name, err := c.deps.API.UploadProfileImage(ctx, nil, hdr.Filename, f)
	if err != nil {
		logger.FromContext(ctx).Warnw("profile upload failed", "err", err)
		return "", errors.Join(errUpload, err)
	}
	return name, nil
}

// conflictField maps a 409 signup message to the field it concerns.
func conflictField(msg string) (string, string) {
	if strings.Contains(msg, "닉네임") || strings.Contains(strings.ToLower(msg), "nickname") {
		return "nickname", form.MsgNicknameTaken
	}
	return "email", form.MsgEmailTaken
}

func (c *Component) renderSignup(w http.ResponseWriter, r *http.Request, status int, sess *form.Session) {
	c.deps.RenderForm(w, r, status, views, "signup", "회원가입", sess, form.RenderOptions{Action: "/signup"}, nil)
}

/*──────────────────────────── Logout ───────────────────────────────────────*/

func (c *Component) postLogout(w http.ResponseWriter, r *http.Request) {
	if !form.VerifyToken(r.PostFormValue("csrf_token"), component.LogoutFormID) {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	c.deps.Auth.Logout(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
