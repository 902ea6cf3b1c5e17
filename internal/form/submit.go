// internal/form/submit.go
//
// Forms subsystem: request binding.
//
// Context
//   Component handlers want one call that parses the POST body, checks the
//   CSRF token, finds the FormSession, and applies every posted field.
//   BindRequest provides that convenience so component code stays terse:
//
//	sess, err := form.BindRequest(store, "auth/login", r)
//	if err != nil { ... }
//	err = sess.Submit(r.Context(), func(ctx context.Context, v form.Values) error { ... })
//
//------------------------------------------------------------------------------

package form

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
)

// maxMemory bounds multipart parsing held in RAM; larger parts spill to disk.
const maxMemory = 8 << 20

// ErrBadToken is returned by BindRequest when the CSRF token does not verify.
var ErrBadToken = errors.New("form: invalid or expired security token")

// BindRequest parses r, verifies the CSRF token, looks up the session for
// formID, and applies every posted field.  A file input's value is the
// uploaded filename, or "" when none was sent; the content is left in r for
// the caller (see File).
func BindRequest(st *Store, formID string, r *http.Request) (*Session, error) {
	if err := parse(r); err != nil {
		return nil, fmt.Errorf("form %s: parse body: %w", formID, err)
	}

	id := r.PostForm.Get("form_id")
	sess, err := st.Lookup(formID, id)
	if err != nil {
		return nil, err
	}
	if !VerifyToken(r.PostForm.Get("csrf_token"), id) {
		return nil, ErrBadToken
	}

	for _, f := range sess.Def().Fields {
		if f.Type == "file" {
			if err := sess.SetField(f.Name, uploaded(r, f.Name)); err != nil {
				return nil, err
			}
			continue
		}
		vals, ok := r.PostForm[f.Name]
		if !ok {
			continue
		}
		v := ""
		if len(vals) > 0 {
			v = vals[0]
		}
		if err := sess.SetField(f.Name, v); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

func parse(r *http.Request) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		return r.ParseMultipartForm(maxMemory)
	}
	return r.ParseForm()
}

// uploaded returns the client filename of the non-empty upload for name.
func uploaded(r *http.Request, name string) string {
	if r.MultipartForm == nil {
		return ""
	}
	hs := r.MultipartForm.File[name]
	if len(hs) == 0 || hs[0].Size == 0 {
		return ""
	}
	if hs[0].Filename == "" {
		return name
	}
	return hs[0].Filename
}

// File returns the uploaded file for field name, if one was sent.
func File(r *http.Request, name string) (multipart.File, *multipart.FileHeader, bool) {
	if r.MultipartForm == nil {
		return nil, nil, false
	}
	f, hdr, err := r.FormFile(name)
	if err != nil || hdr.Size == 0 {
		if f != nil {
			f.Close()
		}
		return nil, nil, false
	}
	return f, hdr, true
}
