// internal/form/unique.go
//
// Forms subsystem: remote uniqueness checks.
//
// Context
//   Signup and profile forms must confirm that an email or nickname is not
//   already taken.  The API answers GET /users/check-email and
//   /users/check-nickname.  Older API builds encode availability only in the
//   human-readable `message` string; newer builds add an `available` boolean.
//   APIChecker prefers the boolean and falls back to the message protocol.
//
// Guarantees
//   •  CheckUnique never returns an error.  Transport and server failures
//      become a generic "try again" message so a flaky network cannot break
//      the form.
//   •  Identical concurrent checks (same kind and value, across every form
//      session in the process) share one API call through singleflight.
//   •  Outbound checks pass a shared token bucket so a burst of keystrokes
//      cannot flood the API.
//   •  Staleness is NOT handled here.  The FormSession discards results whose
//      value no longer matches the field.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"strings"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/yanizio/forum/internal/api"
	"github.com/yanizio/forum/internal/logger"
	"github.com/yanizio/forum/internal/metrics"
)

// Kind names what a uniqueness check is about.
type Kind string

const (
	KindEmail    Kind = "email"
	KindNickname Kind = "nickname"
)

// Messages produced or recognised by the uniqueness protocol.
const (
	MsgEmailAvailable    = "사용 가능한 이메일입니다."
	MsgNicknameAvailable = "사용 가능한 닉네임입니다."
	MsgEmailTaken        = "*중복된 이메일입니다."
	MsgNicknameTaken     = "*중복된 닉네임입니다."
	MsgEmailCheckFailed  = "*이메일 중복 확인 중 오류가 발생했습니다."
	MsgNickCheckFailed   = "*닉네임 중복 확인 중 오류가 발생했습니다."
	takenPrefix          = "이미 사용 중인"
)

// UniquenessChecker reports "" when value is available for kind, otherwise
// the message to show on the field.
type UniquenessChecker interface {
	CheckUnique(ctx context.Context, kind Kind, value string) string
}

// CheckAPI is the slice of *api.Client that APIChecker needs.
type CheckAPI interface {
	CheckEmail(ctx context.Context, email string) (api.CheckResult, error)
	CheckNickname(ctx context.Context, nickname string) (api.CheckResult, error)
}

// APIChecker implements UniquenessChecker against the forum API.
type APIChecker struct {
	api     CheckAPI
	limiter *rate.Limiter
	group   singleflight.Group
}

// NewAPIChecker returns a checker throttled to rps checks per second with the
// given burst.
func NewAPIChecker(c CheckAPI, rps float64, burst int) *APIChecker {
	return &APIChecker{api: c, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// CheckUnique implements UniquenessChecker.  A caller whose ctx ends while a
// shared check is still running gets the generic failure message; the check
// itself keeps going for the other waiters.
func (c *APIChecker) CheckUnique(ctx context.Context, kind Kind, value string) string {
	key := string(kind) + "\x00" + value
	ch := c.group.DoChan(key, func() (any, error) {
		return c.check(context.WithoutCancel(ctx), kind, value), nil
	})
	select {
	case <-ctx.Done():
		return failedMsg(kind)
	case res := <-ch:
		return res.Val.(string)
	}
}

func (c *APIChecker) check(ctx context.Context, kind Kind, value string) string {
	log := logger.FromContext(ctx)
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.UniquenessChecks.WithLabelValues(string(kind), "error").Inc()
		return failedMsg(kind)
	}

	var (
		res api.CheckResult
		err error
	)
	switch kind {
	case KindEmail:
		res, err = c.api.CheckEmail(ctx, value)
	default:
		res, err = c.api.CheckNickname(ctx, value)
	}

	if err != nil {
		if api.IsConflict(err) {
			metrics.UniquenessChecks.WithLabelValues(string(kind), "taken").Inc()
			return takenMsg(kind)
		}
		log.Warnw("uniqueness check failed", "kind", kind, "err", err)
		metrics.UniquenessChecks.WithLabelValues(string(kind), "error").Inc()
		return failedMsg(kind)
	}

	msg := Interpret(kind, res)
	result := "available"
	switch msg {
	case "":
	case takenMsg(kind):
		result = "taken"
	case failedMsg(kind):
		result = "error"
	default:
		result = "message"
	}
	metrics.UniquenessChecks.WithLabelValues(string(kind), result).Inc()
	return msg
}

// Interpret maps one API answer to a field message ("" = available).
func Interpret(kind Kind, res api.CheckResult) string {
	if res.Available != nil {
		if *res.Available {
			return ""
		}
		return takenMsg(kind)
	}
	msg := strings.TrimSpace(res.Message)
	switch {
	case msg == availableMsg(kind):
		return ""
	case strings.HasPrefix(msg, takenPrefix):
		return takenMsg(kind)
	case msg == "":
		return failedMsg(kind)
	}
	return msg
}

func availableMsg(k Kind) string {
	if k == KindEmail {
		return MsgEmailAvailable
	}
	return MsgNicknameAvailable
}

func takenMsg(k Kind) string {
	if k == KindEmail {
		return MsgEmailTaken
	}
	return MsgNicknameTaken
}

func failedMsg(k Kind) string {
	if k == KindEmail {
		return MsgEmailCheckFailed
	}
	return MsgNickCheckFailed
}
