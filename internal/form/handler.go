// internal/form/handler.go
//
// Forms subsystem: live-validation endpoint.
//
// Context
//   The page script posts each field change to
//   `POST /forms/{formID}/fields` (name, value) and paints the JSON answer.
//   `GET` on the same path returns the current state without changing it,
//   which the script polls while a uniqueness check is pending.
//
//   {"errors": {...}, "pending": ["nickname"], "valid": false, "state": "idle"}
//
//   `errors` holds messages for touched fields only.  The CSRF token comes
//   from the `X-CSRF-Token` header or the `csrf_token` form value.
//
//------------------------------------------------------------------------------

package form

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/forum/internal/logger"
)

// FieldState is the JSON body returned by the live-validation endpoint.
type FieldState struct {
	Errors  ErrorMap `json:"errors"`
	Pending []string `json:"pending"`
	Valid   bool     `json:"valid"`
	State   string   `json:"state"`
}

// Routes mounts the live-validation endpoint on r.
func Routes(r chi.Router, st *Store) {
	h := FieldHandler(st)
	r.Get("/forms/{formID}/fields", h)
	r.Post("/forms/{formID}/fields", h)
}

// FieldHandler serves GET and POST /forms/{formID}/fields.
func FieldHandler(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "formID")
		sess, ok := st.Get(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown form"})
			return
		}

		if r.Method == http.MethodPost {
			if err := r.ParseForm(); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
				return
			}
			tok := r.Header.Get("X-CSRF-Token")
			if tok == "" {
				tok = r.PostForm.Get("csrf_token")
			}
			if !VerifyToken(tok, id) {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": ErrBadToken.Error()})
				return
			}
			if err := sess.SetField(r.PostForm.Get("name"), r.PostForm.Get("value")); err != nil {
				status := http.StatusBadRequest
				if errors.Is(err, ErrClosed) {
					status = http.StatusGone
				}
				logger.FromContext(r.Context()).Debugw("live validation rejected", "form", sess.Def().ID, "err", err)
				writeJSON(w, status, map[string]string{"error": err.Error()})
				return
			}
		}

		writeJSON(w, http.StatusOK, Snapshot(sess))
	}
}

// Snapshot captures the live-validation view of sess.
func Snapshot(sess *Session) FieldState {
	errs := sess.VisibleErrors()
	all := sess.Errors()
	pending := sess.Pending()
	if pending == nil {
		pending = []string{}
	}
	return FieldState{
		Errors:  errs,
		Pending: pending,
		Valid:   len(all) == 0 && len(pending) == 0,
		State:   sess.State().String(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
