// internal/component/deps.go
//
// Shared dependencies and page helpers for components.
//
// Context
// -------
// Every component needs the same four collaborators: the REST client, the
// auth manager, the form-session store, and the view engine.  Deps bundles
// them so constructors stay short, and its helpers keep handler code free of
// the repetitive page-chrome and form-session plumbing.

package component

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/yanizio/forum/internal/api"
	"github.com/yanizio/forum/internal/auth"
	"github.com/yanizio/forum/internal/form"
	"github.com/yanizio/forum/internal/logger"
	"github.com/yanizio/forum/internal/message"
	"github.com/yanizio/forum/internal/view"
)

// ErrNotFound is returned by fetch functions for malformed ids.
var ErrNotFound = errors.New("component: not found")

// LogoutFormID scopes the CSRF token of the header's logout button.
const LogoutFormID = "auth/logout"

// Product copy shared by components.
const (
	MsgExpired     = "*입력 시간이 만료되었습니다. 다시 시도해주세요."
	MsgBusy        = "*요청을 처리하고 있습니다. 잠시만 기다려주세요."
	MsgUnavailable = "*서버와 통신 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요."
	MsgNotFound    = "*요청한 페이지를 찾을 수 없습니다."
)

// Deps is what every component receives.
type Deps struct {
	API   *api.Client
	Auth  *auth.Manager
	Forms *form.Store
	Views *view.Engine
}

// FormPage is the Data of a page whose main content is one form.
type FormPage struct {
	Form template.HTML
	Any  any // optional extra payload
}

// Page builds the layout data for r.  The header shows the logged-in user
// when one is known, even on public pages.
func (d Deps) Page(r *http.Request, title string, data any) view.Page {
	p := view.Page{Title: title, Data: data, Flash: message.From(r.Context())}
	if sess, ok := d.Auth.Current(r); ok {
		u := sess.User
		p.User = &u
		if tok, err := form.GenerateToken(LogoutFormID); err == nil {
			p.LogoutToken = tok
		}
	}
	return p
}

// Render writes page from src and logs a failed render.
func (d Deps) Render(w http.ResponseWriter, r *http.Request, status int, src view.Source, page string, p view.Page) {
	if err := d.Views.Render(w, status, src, page, p); err != nil {
		logger.FromContext(r.Context()).Errorw("page render failed", "page", page, "err", err)
	}
}

// RenderForm renders sess inside page.  extra is exposed as .Data.Any.
func (d Deps) RenderForm(w http.ResponseWriter, r *http.Request, status int, src view.Source, page, title string,
	sess *form.Session, opts form.RenderOptions, extra any) {
	html, err := form.RenderForm(sess, opts)
	if err != nil {
		logger.FromContext(r.Context()).Errorw("form render failed", "form", sess.Def().ID, "err", err)
		d.Views.Error(w, r, http.StatusInternalServerError, d.Page(r, "", nil), MsgUnavailable)
		return
	}
	d.Render(w, r, status, src, page, d.Page(r, title, FormPage{Form: html, Any: extra}))
}

// Bind resolves the POSTed form session.  When the session has expired or
// the token is bad, it returns a fresh session carrying the posted values
// and a form-level message, plus the status the page should use.
func (d Deps) Bind(r *http.Request, formID string) (*form.Session, int, bool) {
	sess, err := form.BindRequest(d.Forms, formID, r)
	if err == nil {
		return sess, http.StatusOK, true
	}

	l := logger.FromContext(r.Context())
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, form.ErrBadToken):
		status = http.StatusForbidden
	case errors.Is(err, form.ErrUnknownForm), errors.Is(err, form.ErrClosed):
		status = http.StatusConflict
	}
	l.Infow("form bind rejected", "form", formID, "err", err)

	def, ok := form.GetFormDef(formID)
	if !ok {
		l.Errorw("form definition missing", "form", formID)
		return nil, http.StatusInternalServerError, false
	}
	fresh := d.Forms.New(def, posted(r, def))
	fresh.SetFormError(MsgExpired)
	return fresh, status, false
}

// posted copies non-password text fields from r so a re-rendered form keeps
// what the user typed.
func posted(r *http.Request, def *form.FormDef) form.Values {
	v := form.Values{}
	for _, f := range def.Fields {
		if f.Type == "password" || f.Type == "file" {
			continue
		}
		if s := r.PostFormValue(f.Name); s != "" {
			v[f.Name] = s
		}
	}
	return v
}

// Outcome classifies a Submit error for the page.  It returns the status to
// render with and whether the user must be sent to the login page.
func (d Deps) Outcome(w http.ResponseWriter, r *http.Request, sess *form.Session, err error, fallback string) (int, bool) {
	l := logger.FromContext(r.Context())
	switch {
	case form.IsValidationError(err):
		return http.StatusUnprocessableEntity, false
	case errors.Is(err, form.ErrBusy):
		sess.SetFormError(MsgBusy)
		return http.StatusConflict, false
	case api.IsUnauthorized(err):
		l.Infow("api rejected credentials; clearing session", "form", sess.Def().ID)
		d.Auth.Logout(w, r)
		return http.StatusUnauthorized, true
	}
	if se, ok := api.AsStatusError(err); ok && se.Code < 500 {
		msg := se.Message
		if msg == "" {
			msg = fallback
		}
		sess.SetFormError(msg)
		return se.Code, false
	}
	l.Warnw("form submission failed", "form", sess.Def().ID, "err", err)
	sess.SetFormError(fallback)
	return http.StatusBadGateway, false
}

// Credentials returns the API cookies of the request's authenticated
// session.  Call only behind gate.RequireAuth.
func Credentials(r *http.Request) api.Credentials {
	s, _ := auth.FromContext(r.Context())
	return s.Credentials
}

// FetchError renders the error page for a failed data load.
func (d Deps) FetchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case api.IsUnauthorized(err):
		d.Auth.Logout(w, r)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	case api.IsNotFound(err), errors.Is(err, ErrNotFound):
		d.Views.Error(w, r, http.StatusNotFound, d.Page(r, "", nil), MsgNotFound)
	default:
		logger.FromContext(r.Context()).Errorw("page data fetch failed", "path", r.URL.Path, "err", err)
		d.Views.Error(w, r, http.StatusBadGateway, d.Page(r, "", nil), MsgUnavailable)
	}
}
