package form

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func fillSignup(t *testing.T, s *Session, nick string) {
	t.Helper()
	for k, v := range map[string]string{
		"email":            "neo@matrix.io",
		"password":         "Abcdef1!",
		"confirm_password": "Abcdef1!",
		"nickname":         nick,
	} {
		if err := s.SetField(k, v); err != nil {
			t.Fatalf("SetField(%s): %v", k, err)
		}
	}
}

// Scenario: empty login form is rejected without calling the callback.
func TestLoginEmptySubmit(t *testing.T) {
	s := NewSession(mustDef(t, loginYAML))
	var called bool
	err := s.Submit(context.Background(), func(context.Context, Values) error {
		called = true
		return nil
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	want := ErrorMap{"email": MsgEmailFormat, "password": MsgPasswordRequired}
	if !reflect.DeepEqual(ve.Errors, want) {
		t.Fatalf("errors = %v, want %v", ve.Errors, want)
	}
	if called {
		t.Fatal("callback ran for invalid form")
	}
	if s.State() != Idle {
		t.Fatalf("state = %v, want idle", s.State())
	}
	if got, _ := SubmitValue(context.Background(), s, func(context.Context, Values) (string, error) {
		return "user", nil
	}); got != "" {
		t.Fatalf("SubmitValue returned %q for invalid form", got)
	}
}

// Scenario: nickname whitespace clears, then the pending check gates validity.
func TestSignupNicknameFlow(t *testing.T) {
	fc := newFakeChecker(map[string]string{}, "hello")
	s := NewSession(mustDef(t, signupYAML), WithChecker(fc))
	fillSignup(t, s, "hello world")
	waitStarted(t, fc, "neo@matrix.io")

	if got := s.Errors()["nickname"]; got != MsgNicknameSpace {
		t.Fatalf("nickname error = %q", got)
	}

	if err := s.SetField("nickname", "hello"); err != nil {
		t.Fatal(err)
	}
	waitStarted(t, fc, "hello")
	if s.Errors().Has("nickname") {
		t.Fatalf("sync error not cleared: %v", s.Errors())
	}
	eventually(t, func() bool { return reflect.DeepEqual(s.Pending(), []string{"nickname"}) })
	if out := s.ValidateAll(); out.IsValid || len(out.Errors) != 0 {
		t.Fatalf("outcome = %+v, want no errors but not valid", out)
	}

	fc.release("hello")
	eventually(t, func() bool { return s.ValidateAll().IsValid })
}

// Scenario: a 27-character title fails, 26 passes.
func TestPostTitleLength(t *testing.T) {
	s := NewSession(mustDef(t, postYAML))
	_ = s.SetField("content", "본문")
	_ = s.SetField("title", strings.Repeat("제", 27))
	if got := s.Errors()["title"]; got != MsgTitleTooLong {
		t.Fatalf("title error = %q", got)
	}
	_ = s.SetField("title", strings.Repeat("제", 26))
	if out := s.ValidateAll(); !out.IsValid {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestSetFieldIdempotent(t *testing.T) {
	fc := newFakeChecker(map[string]string{"neo": MsgNicknameTaken})
	s := NewSession(mustDef(t, signupYAML), WithChecker(fc))

	_ = s.SetField("nickname", "neo")
	first := s.Errors()
	_ = s.SetField("nickname", "neo")
	second := s.Errors()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("errors differ: %v vs %v", first, second)
	}

	eventually(t, func() bool { return s.Errors()["nickname"] == MsgNicknameTaken })
	_ = s.SetField("nickname", "neo")
	if fc.callCount() != 1 {
		t.Fatalf("checker called %d times, want 1", fc.callCount())
	}
}

func TestStaleCheckDiscarded(t *testing.T) {
	fc := newFakeChecker(map[string]string{"abc": MsgNicknameTaken}, "abc")
	s := NewSession(mustDef(t, signupYAML), WithChecker(fc))

	_ = s.SetField("nickname", "abc")
	waitStarted(t, fc, "abc")
	s.mu.Lock()
	old := s.inflight["nickname"]
	s.mu.Unlock()

	_ = s.SetField("nickname", "abcd")
	waitStarted(t, fc, "abcd")
	eventually(t, func() bool { return len(s.Pending()) == 0 })

	fc.release("abc")
	<-old.done

	if msg := s.Errors()["nickname"]; msg != "" {
		t.Fatalf("stale result applied: %q", msg)
	}
	if !s.ValidateAll().Errors.Has("email") {
		t.Fatal("expected unrelated email error to remain")
	}
}

func TestDependentFieldRevalidates(t *testing.T) {
	s := NewSession(mustDef(t, signupYAML))
	_ = s.SetField("password", "Abcdef1!")
	_ = s.SetField("confirm_password", "Abcdef1!")
	if s.Errors().Has("confirm_password") {
		t.Fatal("matching confirm reported error")
	}
	_ = s.SetField("password", "Abcdef1?")
	if got := s.VisibleErrors()["confirm_password"]; got != MsgConfirmMismatch {
		t.Fatalf("confirm error = %q", got)
	}
}

func TestSubmitExclusive(t *testing.T) {
	s := NewSession(mustDef(t, postYAML))
	_ = s.SetField("title", "t")
	_ = s.SetField("content", "c")

	var calls int32
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.Submit(context.Background(), func(context.Context, Values) error {
			atomic.AddInt32(&calls, 1)
			<-release
			return nil
		})
	}()

	eventually(t, func() bool { return s.State() == Submitting })
	if err := s.Submit(context.Background(), func(context.Context, Values) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}); !errors.Is(err, ErrBusy) {
		t.Fatalf("second submit = %v, want ErrBusy", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("callback ran %d times", n)
	}
	if s.State() != Succeeded {
		t.Fatalf("state = %v", s.State())
	}
	if err := s.Submit(context.Background(), func(context.Context, Values) error { return nil }); !errors.Is(err, ErrSubmitted) {
		t.Fatalf("after success = %v, want ErrSubmitted", err)
	}
}

func TestSubmitFailureAndPanicSettle(t *testing.T) {
	s := NewSession(mustDef(t, postYAML))
	_ = s.SetField("title", "t")
	_ = s.SetField("content", "c")

	boom := errors.New("api down")
	if err := s.Submit(context.Background(), func(context.Context, Values) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	if s.State() != Failed {
		t.Fatalf("state = %v, want failed", s.State())
	}

	err := s.Submit(context.Background(), func(context.Context, Values) error { panic("nil map") })
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("panic not converted: %v", err)
	}
	if s.State() != Failed {
		t.Fatalf("state = %v after panic", s.State())
	}

	// Invalid from Failed returns to Failed.
	_ = s.SetField("title", "")
	if err := s.Submit(context.Background(), func(context.Context, Values) error { return nil }); !IsValidationError(err) {
		t.Fatalf("got %v", err)
	}
	if s.State() != Failed {
		t.Fatalf("state = %v, want failed", s.State())
	}

	_ = s.SetField("title", "again")
	got, err := SubmitValue(context.Background(), s, func(_ context.Context, v Values) (string, error) {
		return v.Get("title"), nil
	})
	if err != nil || got != "again" {
		t.Fatalf("SubmitValue = %q, %v", got, err)
	}
}

func TestSubmitWaitsForPendingCheck(t *testing.T) {
	fc := newFakeChecker(map[string]string{"neo": MsgNicknameTaken}, "neo")
	s := NewSession(mustDef(t, signupYAML), WithChecker(fc), WithDebounce(time.Hour))
	fillSignup(t, s, "neo")

	done := make(chan error, 1)
	go func() {
		done <- s.Submit(context.Background(), func(context.Context, Values) error {
			t.Error("callback ran despite duplicate nickname")
			return nil
		})
	}()

	// Submit skips the debounce and starts both checks at once.
	eventually(t, func() bool { return fc.callCount() == 2 })
	eventually(t, func() bool { return s.State() == Validating })
	fc.release("neo")

	err := <-done
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Errors["nickname"] != MsgNicknameTaken {
		t.Fatalf("got %v", err)
	}
	if s.State() != Idle {
		t.Fatalf("state = %v", s.State())
	}
}

// Scenario: the nickname check fails once, then the same value passes on a
// later Submit.
func TestFailedCheckRetriedOnSubmit(t *testing.T) {
	fc := newFakeChecker(map[string]string{"neo": MsgNickCheckFailed})
	s := NewSession(mustDef(t, signupYAML), WithChecker(fc))
	fillSignup(t, s, "neo")

	// A failed check settles: nothing stays pending, so forms.js stops polling.
	eventually(t, func() bool {
		return fc.callCount() == 2 && s.Errors()["nickname"] == MsgNickCheckFailed && len(s.Pending()) == 0
	})
	_ = s.SetField("nickname", "neo")
	if fc.callCount() != 2 {
		t.Fatalf("re-posting the same value re-checked: %d calls", fc.callCount())
	}

	// API still down: Submit retries and reports the failure again.
	err := s.Submit(context.Background(), func(context.Context, Values) error {
		t.Error("callback ran while the check was failing")
		return nil
	})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Errors["nickname"] != MsgNickCheckFailed {
		t.Fatalf("got %v", err)
	}
	if fc.callCount() != 3 {
		t.Fatalf("checker called %d times, want 3", fc.callCount())
	}

	// API healthy again: the same value now passes.
	fc.mu.Lock()
	fc.answers["neo"] = ""
	fc.mu.Unlock()

	var ran int
	if err := s.Submit(context.Background(), func(context.Context, Values) error {
		ran++
		return nil
	}); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if ran != 1 || s.State() != Succeeded {
		t.Fatalf("ran = %d, state = %v", ran, s.State())
	}
}

func TestSubmitContextCancelledWhileWaiting(t *testing.T) {
	fc := newFakeChecker(map[string]string{}, "neo")
	defer fc.release("neo")
	s := NewSession(mustDef(t, signupYAML), WithChecker(fc))
	fillSignup(t, s, "neo")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Submit(ctx, func(context.Context, Values) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v", err)
	}
	if s.State() != Idle {
		t.Fatalf("state = %v", s.State())
	}
}

func TestPrefillSkipsOwnValue(t *testing.T) {
	fc := newFakeChecker(map[string]string{"neo": MsgNicknameTaken})
	def := mustDef(t, `
id: account/profile
fields:
  - name: nickname
    label: 닉네임
    validators: [nickname]
    unique: nickname
`)
	s := NewSession(def, WithChecker(fc), WithPrefill(Values{"nickname": "neo"}))
	if out := s.ValidateAll(); !out.IsValid {
		t.Fatalf("own nickname not accepted: %+v", out)
	}
	if err := s.Submit(context.Background(), func(context.Context, Values) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if fc.callCount() != 0 {
		t.Fatalf("checker called %d times for own nickname", fc.callCount())
	}
}

func TestServerErrorClearsOnEdit(t *testing.T) {
	s := NewSession(mustDef(t, loginYAML))
	_ = s.SetField("email", "a@b.co")
	_ = s.SetField("password", "whatever1")
	s.SetServerError("password", "*비밀번호를 확인해주세요.")
	if s.Errors()["password"] == "" {
		t.Fatal("server error not shown")
	}
	_ = s.SetField("password", "whatever2")
	if s.Errors().Has("password") {
		t.Fatal("server error survived edit")
	}

	s.SetFormError("로그인에 실패했습니다.")
	if s.FormError() == "" {
		t.Fatal("form error not set")
	}
	_ = s.SetField("email", "c@d.co")
	if s.FormError() != "" {
		t.Fatal("form error survived edit")
	}
}

func TestClosedSession(t *testing.T) {
	s := NewSession(mustDef(t, postYAML))
	s.Close()
	s.Close()
	if err := s.SetField("title", "x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("SetField = %v", err)
	}
	if err := s.Submit(context.Background(), func(context.Context, Values) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Fatalf("Submit = %v", err)
	}
	if err := s.SetField("nope", "x"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("unknown field = %v", err)
	}
}

func TestStateString(t *testing.T) {
	for st, want := range map[SubmissionState]string{
		Idle: "idle", Validating: "validating", Submitting: "submitting", Succeeded: "succeeded", Failed: "failed",
	} {
		if st.String() != want {
			t.Errorf("%d: %q", st, st.String())
		}
	}
}
