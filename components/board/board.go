// components/board/board.go
//
// Board component: post list, post detail with comments, and post editing.
//
// Context
// -------
// Every board page sits behind gate.RequireAuth.  Read pages are built with
// gate.Loading so nothing renders until the API has answered; a failed load
// renders the error page instead.  Writes go through FormSessions
// (board/post, board/comment) so validation, double-submit protection, and
// the submit state machine are shared with the auth pages.
//
// Routes
// ------
//   GET  /                                          post list
//   GET  /posts/{postID}                            detail + comments
//   GET  /create-post, POST /create-post            new post
//   GET  /edit-post/{postID}, POST same             edit post
//   POST /posts/{postID}/delete                     delete post
//   POST /posts/{postID}/comments                   new comment
//   POST /posts/{postID}/comments/{commentID}/edit  edit comment
//   POST /posts/{postID}/comments/{commentID}/delete
//
//------------------------------------------------------------------------------

package board

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

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

var views = view.Source{Name: "board", FS: templatesFS}

// Form ids.
const (
	PostForm    = "board/post"
	CommentForm = "board/comment"
	// DeleteFormID scopes the CSRF tokens of delete buttons.
	DeleteFormID = "board/delete"
)

// Product copy.
const (
	MsgCreateFailed  = "*게시글 작성 중 오류가 발생했습니다."
	MsgUpdateFailed  = "*게시글 수정 중 오류가 발생했습니다."
	MsgCommentFailed = "*댓글 등록 중 오류가 발생했습니다."
	MsgImageFailed   = "*이미지 업로드 중 오류가 발생했습니다."
	MsgDeleteFailed  = "*삭제 중 오류가 발생했습니다."
)

var _ component.Component = (*Component)(nil)

// Component serves the board pages.
type Component struct {
	deps component.Deps
}

// New returns the board component.
func New(deps component.Deps) *Component { return &Component{deps: deps} }

// Name returns the canonical component key.
func (c *Component) Name() string { return "board" }

// Init registers the board forms.
func (c *Component) Init(component.Deps) error {
	return form.RegisterForms(formsFS, form.DefaultRegistry())
}

// Routes adds the board pages to r behind the auth gate.
func (c *Component) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(gate.RequireAuth(c.deps.Auth, "/login"))

		r.Method(http.MethodGet, "/", gate.Loading[[]api.Post](c.fetchList, c.renderList, c.deps.FetchError))
		r.Method(http.MethodGet, "/posts/{postID}", gate.Loading[detail](c.fetchDetail, c.renderDetail, c.deps.FetchError))
		r.Post("/posts/{postID}/delete", c.deletePost)

		r.Get("/create-post", c.getCreate)
		r.Post("/create-post", c.postCreate)
		r.Method(http.MethodGet, "/edit-post/{postID}", gate.Loading[api.Post](c.fetchPost, c.renderEdit, c.deps.FetchError))
		r.Post("/edit-post/{postID}", c.postEdit)

		r.Post("/posts/{postID}/comments", c.postComment)
		r.Post("/posts/{postID}/comments/{commentID}/edit", c.postComment)
		r.Post("/posts/{postID}/comments/{commentID}/delete", c.deleteComment)
	})
}

/*──────────────────────────── helpers ──────────────────────────────────────*/

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, component.ErrNotFound
	}
	return id, nil
}

func me(r *http.Request) auth.User {
	s, _ := auth.FromContext(r.Context())
	return s.User
}

func deleteToken() string {
	tok, _ := form.GenerateToken(DeleteFormID)
	return tok
}

// finish handles a failed Submit: send the browser to login when the API
// rejected the session, otherwise re-render with render.
func (c *Component) finish(w http.ResponseWriter, r *http.Request, sess *form.Session, err error, fallback string,
	render func(status int)) {
	status, relogin := c.deps.Outcome(w, r, sess, err, fallback)
	if relogin {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	render(status)
}

var errImage = errors.New("post image upload failed")

// uploadImage sends the optional post image.  ok is false when none was sent.
func (c *Component) uploadImage(ctx context.Context, r *http.Request) (name string, ok bool, err error) {
	f, hdr, sent := form.File(r, "post_image")
	if !sent {
		return "", false, nil
	}
	defer f.Close()
	name, err = c.deps.API.UploadPostImage(ctx, component.Credentials(r), hdr.Filename, f)
	if err != nil {
		logger.FromContext(ctx).Warnw("post image upload failed", "err", err)
		return "", false, errors.Join(errImage, err)
	}
	return name, true, nil
}

/*──────────────────────────── list ─────────────────────────────────────────*/

func (c *Component) fetchList(r *http.Request) ([]api.Post, error) {
	return c.deps.API.ListPosts(r.Context(), component.Credentials(r))
}

func (c *Component) renderList(w http.ResponseWriter, r *http.Request, posts []api.Post) {
	c.deps.Render(w, r, http.StatusOK, views, "list", c.deps.Page(r, "게시판", posts))
}

/*──────────────────────────── detail ───────────────────────────────────────*/

// detail is the data of the post page.
type detail struct {
	Post        api.Post
	Comments    []api.Comment
	Me          string // current nickname, for ownership checks
	CommentForm template.HTML
	DeleteToken string
	Editing     int64 // comment id being edited, or 0
}

func (c *Component) fetchDetail(r *http.Request) (detail, error) {
	id, err := idParam(r, "postID")
	if err != nil {
		return detail{}, err
	}
	creds := component.Credentials(r)

	var d detail
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		d.Post, err = c.deps.API.GetPost(ctx, creds, id)
		return err
	})
	g.Go(func() (err error) {
		d.Comments, err = c.deps.API.ListComments(ctx, creds, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return detail{}, err
	}
	return d, nil
}

// renderDetail is the Loading render for a fresh GET.  ?edit_comment=<id>
// loads that comment into the comment box.
func (c *Component) renderDetail(w http.ResponseWriter, r *http.Request, d detail) {
	var prefill form.Values
	if cid, err := strconv.ParseInt(r.URL.Query().Get("edit_comment"), 10, 64); err == nil {
		for _, cm := range d.Comments {
			if cm.ID == cid && cm.AuthorNickname == me(r).Nickname {
				d.Editing = cid
				prefill = form.Values{"content": cm.Content}
			}
		}
	}
	sess := c.deps.Forms.New(form.MustFormDef(CommentForm), prefill)
	c.writeDetail(w, r, http.StatusOK, d, sess)
}

func (c *Component) writeDetail(w http.ResponseWriter, r *http.Request, status int, d detail, sess *form.Session) {
	opts := form.RenderOptions{Action: fmt.Sprintf("/posts/%d/comments", d.Post.ID)}
	if d.Editing != 0 {
		opts.Action = fmt.Sprintf("/posts/%d/comments/%d/edit", d.Post.ID, d.Editing)
		opts.Submit = "수정하기"
	}
	html, err := form.RenderForm(sess, opts)
	if err != nil {
		logger.FromContext(r.Context()).Errorw("comment form render failed", "err", err)
		c.deps.Views.Error(w, r, http.StatusInternalServerError, c.deps.Page(r, "", nil), component.MsgUnavailable)
		return
	}
	d.CommentForm = html
	d.Me = me(r).Nickname
	d.DeleteToken = deleteToken()
	c.deps.Render(w, r, status, views, "detail", c.deps.Page(r, d.Post.Title, d))
}

/*──────────────────────────── comments ─────────────────────────────────────*/

// postComment serves both new-comment and edit-comment POSTs.
func (c *Component) postComment(w http.ResponseWriter, r *http.Request) {
	postID, err := idParam(r, "postID")
	if err != nil {
		c.deps.FetchError(w, r, err)
		return
	}
	var commentID int64
	if chi.URLParam(r, "commentID") != "" {
		if commentID, err = idParam(r, "commentID"); err != nil {
			c.deps.FetchError(w, r, err)
			return
		}
	}

	rerender := func(sess *form.Session, status int) {
		d, err := c.fetchDetail(r)
		if err != nil {
			c.deps.FetchError(w, r, err)
			return
		}
		d.Editing = commentID
		c.writeDetail(w, r, status, d, sess)
	}

	sess, status, ok := c.deps.Bind(r, CommentForm)
	if sess == nil {
		c.deps.Views.Error(w, r, status, c.deps.Page(r, "", nil), component.MsgUnavailable)
		return
	}
	if !ok {
		rerender(sess, status)
		return
	}

	creds := component.Credentials(r)
	err = sess.Submit(r.Context(), func(ctx context.Context, v form.Values) error {
		if commentID != 0 {
			return c.deps.API.UpdateComment(ctx, creds, postID, commentID, v.Get("content"))
		}
		return c.deps.API.CreateComment(ctx, creds, postID, v.Get("content"))
	})
	if err == nil || errors.Is(err, form.ErrSubmitted) {
		c.deps.Forms.Remove(sess.ID())
		http.Redirect(w, r, fmt.Sprintf("/posts/%d#comments", postID), http.StatusSeeOther)
		return
	}
	c.finish(w, r, sess, err, MsgCommentFailed, func(status int) { rerender(sess, status) })
}

func (c *Component) deleteComment(w http.ResponseWriter, r *http.Request) {
	postID, err := idParam(r, "postID")
	if err == nil {
		var commentID int64
		if commentID, err = idParam(r, "commentID"); err == nil {
			err = c.checkDelete(r)
			if err == nil {
				err = c.deps.API.DeleteComment(r.Context(), component.Credentials(r), postID, commentID)
			}
		}
	}
	c.afterDelete(w, r, err, fmt.Sprintf("/posts/%d#comments", postID), "")
}

/*──────────────────────────── delete post ──────────────────────────────────*/

var errBadToken = errors.New("board: bad delete token")

func (c *Component) checkDelete(r *http.Request) error {
	if !form.VerifyToken(r.PostFormValue("csrf_token"), DeleteFormID) {
		return errBadToken
	}
	return nil
}

func (c *Component) deletePost(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "postID")
	if err == nil {
		if err = c.checkDelete(r); err == nil {
			err = c.deps.API.DeletePost(r.Context(), component.Credentials(r), id)
		}
	}
	c.afterDelete(w, r, err, "/", message.PostDeleted)
}

func (c *Component) afterDelete(w http.ResponseWriter, r *http.Request, err error, next string, notice message.Notice) {
	switch {
	case err == nil:
		if notice != "" {
			message.Set(w, notice)
		}
		http.Redirect(w, r, next, http.StatusSeeOther)
	case errors.Is(err, errBadToken):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	case errors.Is(err, component.ErrNotFound), api.IsNotFound(err), api.IsUnauthorized(err):
		c.deps.FetchError(w, r, err)
	default:
		logger.FromContext(r.Context()).Warnw("delete failed", "path", r.URL.Path, "err", err)
		c.deps.Views.Error(w, r, http.StatusBadGateway, c.deps.Page(r, "", nil), MsgDeleteFailed)
	}
}

/*──────────────────────────── create / edit post ───────────────────────────*/

func (c *Component) getCreate(w http.ResponseWriter, r *http.Request) {
	sess := c.deps.Forms.New(form.MustFormDef(PostForm), nil)
	c.renderPostForm(w, r, http.StatusOK, sess, "/create-post", "게시글 작성", nil)
}

func (c *Component) postCreate(w http.ResponseWriter, r *http.Request) {
	sess, status, ok := c.deps.Bind(r, PostForm)
	if sess == nil {
		c.deps.Views.Error(w, r, status, c.deps.Page(r, "", nil), component.MsgUnavailable)
		return
	}
	if !ok {
		c.renderPostForm(w, r, status, sess, "/create-post", "게시글 작성", nil)
		return
	}

	creds := component.Credentials(r)
	err := sess.Submit(r.Context(), func(ctx context.Context, v form.Values) error {
		image, _, err := c.uploadImage(ctx, r)
		if err != nil {
			return err
		}
		_, err = c.deps.API.CreatePost(ctx, creds, api.PostInput{
			Title:     v.Get("title"),
			Content:   v.Get("content"),
			PostImage: image,
		})
		return err
	})
	if err == nil || errors.Is(err, form.ErrSubmitted) {
		c.deps.Forms.Remove(sess.ID())
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if errors.Is(err, errImage) {
		sess.SetFormError(MsgImageFailed)
		c.renderPostForm(w, r, http.StatusBadGateway, sess, "/create-post", "게시글 작성", nil)
		return
	}
	c.finish(w, r, sess, err, MsgCreateFailed, func(status int) {
		c.renderPostForm(w, r, status, sess, "/create-post", "게시글 작성", nil)
	})
}

func (c *Component) fetchPost(r *http.Request) (api.Post, error) {
	id, err := idParam(r, "postID")
	if err != nil {
		return api.Post{}, err
	}
	return c.deps.API.GetPost(r.Context(), component.Credentials(r), id)
}

func (c *Component) renderEdit(w http.ResponseWriter, r *http.Request, p api.Post) {
	sess := c.deps.Forms.New(form.MustFormDef(PostForm), form.Values{"title": p.Title, "content": p.Content})
	c.renderPostForm(w, r, http.StatusOK, sess, fmt.Sprintf("/edit-post/%d", p.ID), "게시글 수정", &p)
}

func (c *Component) postEdit(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "postID")
	if err != nil {
		c.deps.FetchError(w, r, err)
		return
	}
	action := fmt.Sprintf("/edit-post/%d", id)

	sess, status, ok := c.deps.Bind(r, PostForm)
	if sess == nil {
		c.deps.Views.Error(w, r, status, c.deps.Page(r, "", nil), component.MsgUnavailable)
		return
	}
	if !ok {
		c.renderPostForm(w, r, status, sess, action, "게시글 수정", nil)
		return
	}

	creds := component.Credentials(r)
	err = sess.Submit(r.Context(), func(ctx context.Context, v form.Values) error {
		image, uploaded, err := c.uploadImage(ctx, r)
		if err != nil {
			return err
		}
		if !uploaded {
			cur, err := c.deps.API.GetPost(ctx, creds, id)
			if err != nil {
				return err
			}
			image = cur.Image
		}
		return c.deps.API.UpdatePost(ctx, creds, id, api.PostInput{
			Title:     v.Get("title"),
			Content:   v.Get("content"),
			PostImage: image,
		})
	})
	if err == nil || errors.Is(err, form.ErrSubmitted) {
		c.deps.Forms.Remove(sess.ID())
		http.Redirect(w, r, fmt.Sprintf("/posts/%d", id), http.StatusSeeOther)
		return
	}
	if errors.Is(err, errImage) {
		sess.SetFormError(MsgImageFailed)
		c.renderPostForm(w, r, http.StatusBadGateway, sess, action, "게시글 수정", nil)
		return
	}
	c.finish(w, r, sess, err, MsgUpdateFailed, func(status int) {
		c.renderPostForm(w, r, status, sess, action, "게시글 수정", nil)
	})
}

func (c *Component) renderPostForm(w http.ResponseWriter, r *http.Request, status int, sess *form.Session,
	action, title string, existing *api.Post) {
	c.deps.RenderForm(w, r, status, views, "post_form", title, sess, form.RenderOptions{Action: action}, existing)
}
