package auth

import (
	"errors"
	"time"

	"github.com/yanizio/forum/internal/api"
)

// ErrNoSession is returned when a session id is unknown or expired.
var ErrNoSession = errors.New("auth: no such session")

// State is the outcome of resolving a request's session.
type State int

const (
	// StateUnknown means the session exists but could not be re-verified,
	// usually because the API is unreachable.
	StateUnknown State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

// User is the profile slice of a session shown in page chrome.
type User struct {
	UserID       int64
	Nickname     string
	Email        string
	ProfileImage string
}

// UserFromAPI converts the API representation.
func UserFromAPI(u api.User) User {
	return User{UserID: u.UserID, Nickname: u.Nickname, Email: u.Email, ProfileImage: u.ProfileImage}
}

// Session is one browser's login.  Credentials are the API cookies captured at
// login and forwarded on every authenticated API call.
type Session struct {
	ID          string
	User        User
	Credentials api.Credentials
	LoggedIn    bool
	CreatedAt   time.Time
	VerifiedAt  time.Time
}
