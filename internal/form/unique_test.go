package form

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yanizio/forum/internal/api"
)

func boolPtr(b bool) *bool { return &b }

func TestInterpret(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		res  api.CheckResult
		want string
	}{
		{"structured available wins", KindEmail, api.CheckResult{Message: "이미 사용 중인 이메일입니다.", Available: boolPtr(true)}, ""},
		{"structured taken", KindNickname, api.CheckResult{Available: boolPtr(false)}, MsgNicknameTaken},
		{"legacy email available", KindEmail, api.CheckResult{Message: MsgEmailAvailable}, ""},
		{"legacy nickname available", KindNickname, api.CheckResult{Message: MsgNicknameAvailable}, ""},
		{"legacy email taken", KindEmail, api.CheckResult{Message: "이미 사용 중인 이메일입니다."}, MsgEmailTaken},
		{"legacy nickname taken", KindNickname, api.CheckResult{Message: "이미 사용 중인 닉네임입니다."}, MsgNicknameTaken},
		{"other message verbatim", KindNickname, api.CheckResult{Message: "금지된 닉네임입니다."}, "금지된 닉네임입니다."},
		{"empty body", KindEmail, api.CheckResult{}, MsgEmailCheckFailed},
		{"wrong kind available text", KindEmail, api.CheckResult{Message: MsgNicknameAvailable}, MsgNicknameAvailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Interpret(tc.kind, tc.res); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

type fakeCheckAPI struct {
	calls int32
	gate  chan struct{}
	res   api.CheckResult
	err   error
}

func (f *fakeCheckAPI) CheckEmail(ctx context.Context, email string) (api.CheckResult, error) {
	return f.answer()
}

func (f *fakeCheckAPI) CheckNickname(ctx context.Context, nickname string) (api.CheckResult, error) {
	return f.answer()
}

func (f *fakeCheckAPI) answer() (api.CheckResult, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.gate != nil {
		<-f.gate
	}
	return f.res, f.err
}

func TestAPICheckerFailuresBecomeMessages(t *testing.T) {
	c := NewAPIChecker(&fakeCheckAPI{err: errors.New("dial tcp: refused")}, 100, 10)
	if got := c.CheckUnique(context.Background(), KindEmail, "a@b.co"); got != MsgEmailCheckFailed {
		t.Fatalf("got %q", got)
	}
	c = NewAPIChecker(&fakeCheckAPI{err: &api.StatusError{Code: http.StatusInternalServerError}}, 100, 10)
	if got := c.CheckUnique(context.Background(), KindNickname, "neo"); got != MsgNickCheckFailed {
		t.Fatalf("got %q", got)
	}
	c = NewAPIChecker(&fakeCheckAPI{err: &api.StatusError{Code: http.StatusConflict}}, 100, 10)
	if got := c.CheckUnique(context.Background(), KindNickname, "neo"); got != MsgNicknameTaken {
		t.Fatalf("conflict: got %q", got)
	}
}

func TestAPICheckerCoalesces(t *testing.T) {
	fa := &fakeCheckAPI{gate: make(chan struct{}), res: api.CheckResult{Message: MsgNicknameAvailable}}
	c := NewAPIChecker(fa, 100, 10)

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.CheckUnique(context.Background(), KindNickname, "neo")
		}(i)
	}
	// Let the callers pile up on the shared flight before releasing it.
	eventually(t, func() bool { return atomic.LoadInt32(&fa.calls) == 1 })
	time.Sleep(20 * time.Millisecond)
	close(fa.gate)
	wg.Wait()

	for i, r := range results {
		if r != "" {
			t.Fatalf("caller %d got %q", i, r)
		}
	}
	if n := atomic.LoadInt32(&fa.calls); n != 1 {
		t.Fatalf("API called %d times, want 1", n)
	}
}

func TestAPICheckerCallerCancel(t *testing.T) {
	fa := &fakeCheckAPI{gate: make(chan struct{}), res: api.CheckResult{Message: MsgEmailAvailable}}
	defer close(fa.gate)
	c := NewAPIChecker(fa, 100, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := c.CheckUnique(ctx, KindEmail, "a@b.co"); got != MsgEmailCheckFailed {
		t.Fatalf("got %q", got)
	}
}
