// components/account/account.go
//
// Account component: profile edit, password change, and account deletion.
//
// Context
// -------
// All routes require an authenticated session.  The profile form is
// prefilled with the current nickname; the prefilled value is never sent for
// a uniqueness check, only a changed one is.  Password change and account
// deletion end the session and send the browser to /login, matching the API,
// which invalidates its own cookies in both cases.
//
//------------------------------------------------------------------------------

package account

import (
	"context"
	"embed"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/forum/internal/api"
	"github.com/yanizio/forum/internal/auth"
	"github.com/yanizio/forum/internal/component"
	"github.com/yanizio/forum/internal/form"
	"github.com/yanizio/forum/internal/gate"
	"github.com/yanizio/forum/internal/logger"
	"github.com/yanizio/forum/internal/message"
	"github.com/yanizio/forum/internal/view"
)

//go:embed forms/*.yaml
var formsFS embed.FS

//go:embed templates/*.html
var templatesFS embed.FS

var views = view.Source{Name: "account", FS: templatesFS}

// Form ids.
const (
	ProfileForm  = "account/profile"
	PasswordForm = "account/password"
	// DeleteFormID scopes the CSRF token of the delete-account button.
	DeleteFormID = "account/delete"
)

// Product copy.
const (
	MsgProfileFailed  = "*사용자 정보 수정 중 오류가 발생했습니다."
	MsgPasswordFailed = "*비밀번호 변경 중 오류가 발생했습니다."
	MsgDeleteFailed   = "*회원탈퇴 중 오류가 발생했습니다."
	MsgUploadFailed   = "*사진 업로드 중 오류가 발생했습니다."
)

var _ component.Component = (*Component)(nil)

// Component serves the account pages.
type Component struct {
	deps component.Deps
}

// New returns the account component.
func New(deps component.Deps) *Component { return &Component{deps: deps} }

// Name returns the canonical component key.
func (c *Component) Name() string { return "account" }

// Init registers the account forms.
func (c *Component) Init(component.Deps) error {
	return form.RegisterForms(formsFS, form.DefaultRegistry())
}

// Routes adds the account pages to r behind the auth gate.
func (c *Component) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(gate.RequireAuth(c.deps.Auth, "/login"))
		r.Get("/edit-profile", c.getProfile)
		r.Post("/edit-profile", c.postProfile)
		r.Post("/edit-profile/delete", c.deleteAccount)
		r.Get("/change-password", c.getPassword)
		r.Post("/change-password", c.postPassword)
	})
}

func current(r *http.Request) auth.Session {
	s, _ := auth.FromContext(r.Context())
	return s
}

/*──────────────────────────── profile ──────────────────────────────────────*/

func (c *Component) getProfile(w http.ResponseWriter, r *http.Request) {
	sess := c.deps.Forms.New(form.MustFormDef(ProfileForm), form.Values{"nickname": current(r).User.Nickname})
	c.renderProfile(w, r, http.StatusOK, sess)
}

func (c *Component) postProfile(w http.ResponseWriter, r *http.Request) {
	sess, status, ok := c.deps.Bind(r, ProfileForm)
	if sess == nil {
		c.deps.Views.Error(w, r, status, c.deps.Page(r, "", nil), component.MsgUnavailable)
		return
	}
	if !ok {
		c.renderProfile(w, r, status, sess)
		return
	}

	me := current(r)
	var update api.UserUpdate
	err := sess.Submit(r.Context(), func(ctx context.Context, v form.Values) error {
		update = api.UserUpdate{Nickname: v.Get("nickname"), ProfileImage: me.User.ProfileImage}
		if f, hdr, sent := form.File(r, "profile_image"); sent {
			defer f.Close()
			name, err := c.deps.API.UploadProfileImage(ctx, me.Credentials, hdr.Filename, f)
			if err != nil {
				logger.FromContext(ctx).Warnw("profile upload failed", "err", err)
				return errors.Join(errUpload, err)
			}
			update.ProfileImage = name
		}
		return c.deps.API.UpdateUser(ctx, me.Credentials, me.User.UserID, update)
	})
	switch {
	case err == nil:
		if err := c.deps.Auth.Update(r.Context(), func(u *auth.User) {
			u.Nickname = update.Nickname
			u.ProfileImage = update.ProfileImage
		}); err != nil {
			logger.FromContext(r.Context()).Warnw("session profile refresh failed", "err", err)
		}
		c.deps.Forms.Remove(sess.ID())
		message.Set(w, message.ProfileUpdated)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	case errors.Is(err, form.ErrSubmitted):
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	case errors.Is(err, errUpload):
		sess.SetFormError(MsgUploadFailed)
		c.renderProfile(w, r, http.StatusBadGateway, sess)
		return
	case api.IsConflict(err):
		sess.SetServerError("nickname", form.MsgNicknameTaken)
		c.renderProfile(w, r, http.StatusConflict, sess)
		return
	}
	status, relogin := c.deps.Outcome(w, r, sess, err, MsgProfileFailed)
	if relogin {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	c.renderProfile(w, r, status, sess)
}

var errUpload = errors.New("profile image upload failed")

func (c *Component) renderProfile(w http.ResponseWriter, r *http.Request, status int, sess *form.Session) {
	tok, _ := form.GenerateToken(DeleteFormID)
	c.deps.RenderForm(w, r, status, views, "profile", "회원정보수정", sess, form.RenderOptions{Action: "/edit-profile"}, tok)
}

func (c *Component) deleteAccount(w http.ResponseWriter, r *http.Request) {
	if !form.VerifyToken(r.PostFormValue("csrf_token"), DeleteFormID) {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	me := current(r)
	err := c.deps.API.DeleteUser(r.Context(), me.Credentials, me.User.UserID)
	switch {
	case err == nil:
		logger.FromContext(r.Context()).Infow("account deleted", "user_id", me.User.UserID)
		c.deps.Auth.Logout(w, r)
		message.Set(w, message.AccountDeleted)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	case api.IsUnauthorized(err):
		c.deps.FetchError(w, r, err)
	default:
		logger.FromContext(r.Context()).Warnw("account deletion failed", "user_id", me.User.UserID, "err", err)
		c.deps.Views.Error(w, r, http.StatusBadGateway, c.deps.Page(r, "", nil), MsgDeleteFailed)
	}
}

/*──────────────────────────── password ─────────────────────────────────────*/

func (c *Component) getPassword(w http.ResponseWriter, r *http.Request) {
	sess := c.deps.Forms.New(form.MustFormDef(PasswordForm), nil)
	c.renderPassword(w, r, http.StatusOK, sess)
}

func (c *Component) postPassword(w http.ResponseWriter, r *http.Request) {
	sess, status, ok := c.deps.Bind(r, PasswordForm)
	if sess == nil {
		c.deps.Views.Error(w, r, status, c.deps.Page(r, "", nil), component.MsgUnavailable)
		return
	}
	if !ok {
		c.renderPassword(w, r, status, sess)
		return
	}

	me := current(r)
	err := sess.Submit(r.Context(), func(ctx context.Context, v form.Values) error {
		return c.deps.API.ChangePassword(ctx, me.Credentials, me.User.UserID, v.Get("password"))
	})
	if err == nil || errors.Is(err, form.ErrSubmitted) {
		c.deps.Forms.Remove(sess.ID())
		c.deps.Auth.Logout(w, r)
		message.Set(w, message.PasswordChanged)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	status, relogin := c.deps.Outcome(w, r, sess, err, MsgPasswordFailed)
	if relogin {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	c.renderPassword(w, r, status, sess)
}

func (c *Component) renderPassword(w http.ResponseWriter, r *http.Request, status int, sess *form.Session) {
	c.deps.RenderForm(w, r, status, views, "password", "비밀번호 수정", sess, form.RenderOptions{Action: "/change-password"}, nil)
}
