// internal/auth/context.go
//
// Request-context helpers for the resolved auth session.
//
// Usage
// -----
//     // gate.RequireAuth attaches the session once it is verified.
//     ctx = auth.WithSession(ctx, sess)
//
//     // Handlers downstream read it back.
//     sess, ok := auth.FromContext(ctx)
//     id, ok := auth.UserID(ctx)
//
// Notes
// -----
// • The context carries a copy.  Mutations go through Store.Update.
// • Oxford commas, two spaces after periods.

package auth

import "context"

// sessionKey is unexported to avoid context-key collisions.
type sessionKey struct{}

// WithSession returns a new context carrying sess.
func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// FromContext extracts the session stored by WithSession.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok && s.LoggedIn
}

// UserID extracts the logged-in user's id from ctx.  It returns (0, false)
// when no session is attached.
func UserID(ctx context.Context) (int64, bool) {
	s, ok := FromContext(ctx)
	if !ok {
		return 0, false
	}
	return s.User.UserID, true
}
