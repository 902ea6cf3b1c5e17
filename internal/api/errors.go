package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// StatusError is a non-2xx API response.  Message is the API's own
// `message` field when it sent one.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %s %s: %d %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("api %s %s: %d", e.Method, e.Path, e.Code)
}

func newStatusError(method, path string, code int, body []byte) *StatusError {
	var m struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &m)
	return &StatusError{Method: method, Path: path, Code: code, Message: strings.TrimSpace(m.Message)}
}

// AsStatusError unwraps err into a *StatusError.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	ok := errors.As(err, &se)
	return se, ok
}

func hasCode(err error, code int) bool {
	se, ok := AsStatusError(err)
	return ok && se.Code == code
}

// IsUnauthorized reports a 401 from the API.
func IsUnauthorized(err error) bool { return hasCode(err, http.StatusUnauthorized) }

// IsConflict reports a 409 from the API (duplicate email or nickname).
func IsConflict(err error) bool { return hasCode(err, http.StatusConflict) }

// IsNotFound reports a 404 from the API.
func IsNotFound(err error) bool { return hasCode(err, http.StatusNotFound) }

// Message returns the API message carried by err, or "".
func Message(err error) string {
	if se, ok := AsStatusError(err); ok {
		return se.Message
	}
	return ""
}
