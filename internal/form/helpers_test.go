package form

import (
	"context"
	"sync"
	"testing"
	"time"
)

const signupYAML = `
id: auth/signup
title: 회원가입
fields:
  - name: email
    label: 이메일
    type: email
    validators: [email]
    unique: email
  - name: password
    label: 비밀번호
    type: password
    validators: [password]
  - name: confirm_password
    label: 비밀번호 확인
    type: password
    validators: [confirm_password]
    depends_on: [password]
  - name: nickname
    label: 닉네임
    validators: [nickname]
    unique: nickname
`

const loginYAML = `
id: auth/login
fields:
  - name: email
    label: 이메일
    type: email
    validators: [login_email]
  - name: password
    label: 비밀번호
    type: password
    validators: [login_password]
`

const postYAML = `
id: board/post
fields:
  - name: title
    label: 제목
    validators: [post_title]
  - name: content
    label: 내용
    type: textarea
    validators: [post_content]
`

func mustDef(t *testing.T, src string) *FormDef {
	t.Helper()
	fd, err := LoadFormDef([]byte(src), "test.yaml", DefaultRegistry())
	if err != nil {
		t.Fatalf("LoadFormDef: %v", err)
	}
	return fd
}

// fakeChecker answers from a map.  Values listed in hold block until
// release(value) is called; blocked calls ignore ctx so tests control exactly
// when a result arrives.
type fakeChecker struct {
	mu      sync.Mutex
	answers map[string]string
	hold    map[string]chan struct{}
	calls   []string
	started chan string
}

func newFakeChecker(answers map[string]string, hold ...string) *fakeChecker {
	fc := &fakeChecker{answers: answers, hold: map[string]chan struct{}{}, started: make(chan string, 64)}
	for _, v := range hold {
		fc.hold[v] = make(chan struct{})
	}
	return fc
}

func (fc *fakeChecker) CheckUnique(_ context.Context, _ Kind, value string) string {
	fc.mu.Lock()
	fc.calls = append(fc.calls, value)
	gate := fc.hold[value]
	msg := fc.answers[value]
	fc.mu.Unlock()

	fc.started <- value
	if gate != nil {
		<-gate
	}
	return msg
}

func (fc *fakeChecker) release(v string) { close(fc.hold[v]) }

func (fc *fakeChecker) callCount() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return len(fc.calls)
}

func waitStarted(t *testing.T, fc *fakeChecker, want string) {
	t.Helper()
	select {
	case got := <-fc.started:
		if got != want {
			t.Fatalf("check started for %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("check for %q never started", want)
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
