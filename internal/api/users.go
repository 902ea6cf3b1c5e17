package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Login posts credentials and returns the user plus the API's session
// cookies.  A wrong password surfaces as *StatusError (usually 401).
func (c *Client) Login(ctx context.Context, email, password string) (User, Credentials, error) {
	var raw json.RawMessage
	resp, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/users/login",
		body:   map[string]string{"email": email, "password": password},
		out:    &raw,
	})
	if err != nil {
		return User{}, nil, err
	}
	u, err := decodeUser(raw)
	if err != nil {
		return User{}, nil, fmt.Errorf("api login: %w", err)
	}
	return u, Credentials(resp.Cookies()), nil
}

// decodeUser accepts both `{"user": {...}}` and a bare user object.
func decodeUser(raw json.RawMessage) (User, error) {
	var env struct {
		User *User `json:"user"`
	}
	if len(raw) == 0 {
		return User{}, nil
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return User{}, err
	}
	if env.User != nil {
		return *env.User, nil
	}
	var u User
	err := json.Unmarshal(raw, &u)
	return u, err
}

// Signup creates an account.  Conflicts arrive as 409 with the API message.
func (c *Client) Signup(ctx context.Context, in SignupRequest) error {
	_, err := c.do(ctx, call{method: http.MethodPost, path: "/users/signup", body: in})
	return err
}

// CheckEmail asks whether email is still available.
func (c *Client) CheckEmail(ctx context.Context, email string) (CheckResult, error) {
	var out CheckResult
	_, err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/users/check-email",
		query:  url.Values{"email": {email}},
		out:    &out,
	})
	return out, err
}

// CheckNickname asks whether nickname is still available.
func (c *Client) CheckNickname(ctx context.Context, nickname string) (CheckResult, error) {
	var out CheckResult
	_, err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/users/check-nickname",
		query:  url.Values{"nickname": {nickname}},
		out:    &out,
	})
	return out, err
}

// GetUser fetches one user.  auth.Store uses it to re-verify sessions.
func (c *Client) GetUser(ctx context.Context, creds Credentials, id int64) (User, error) {
	var raw json.RawMessage
	if _, err := c.do(ctx, call{
		method: http.MethodGet,
		path:   fmt.Sprintf("/users/%d", id),
		creds:  creds,
		out:    &raw,
	}); err != nil {
		return User{}, err
	}
	return decodeUser(raw)
}

// UpdateUser changes nickname and, when set, the profile image.
func (c *Client) UpdateUser(ctx context.Context, creds Credentials, id int64, in UserUpdate) error {
	_, err := c.do(ctx, call{method: http.MethodPatch, path: fmt.Sprintf("/users/%d", id), creds: creds, body: in})
	return err
}

// DeleteUser removes the account.
func (c *Client) DeleteUser(ctx context.Context, creds Credentials, id int64) error {
	_, err := c.do(ctx, call{method: http.MethodDelete, path: fmt.Sprintf("/users/%d", id), creds: creds})
	return err
}

// ChangePassword replaces the account password.
func (c *Client) ChangePassword(ctx context.Context, creds Credentials, id int64, newPassword string) error {
	_, err := c.do(ctx, call{
		method: http.MethodPatch,
		path:   fmt.Sprintf("/users/%d/password", id),
		creds:  creds,
		body:   map[string]string{"new_password": newPassword},
	})
	return err
}
