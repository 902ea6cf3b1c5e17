// internal/form/session.go
//
// Forms subsystem: FormSession, the stateful orchestrator behind one rendered
// form.
//
// Context
//   A FormSession is created when a form page is rendered and lives until the
//   form is submitted successfully, abandoned, or evicted from the Store.  It
//   holds the current values, the merged error map (synchronous validators
//   plus cached uniqueness results), and the submission state machine.
//
// Concurrency
//   •  One mutex guards all state.  Validators run under it; they are pure and
//      fast.  The submit callback and uniqueness checks never run under it.
//   •  Each unique field has at most one in-flight check.  A newer value
//      cancels the older check, and every result is applied only if the field
//      still holds the value that triggered it, so completion order never
//      matters.
//   •  Submit is exclusive: while Validating or Submitting, further calls
//      return ErrBusy without running the callback.
//
// Notes
//   •  Errors are reported for every field; views show them only for touched
//      fields, so an untouched form does not open covered in red.
//   •  A field's prefilled value (its own nickname on the profile form) is
//      never sent for a uniqueness check.
//   •  A check that failed (transport error, API down) keeps its message on
//      the field but is not a verdict.  The next Submit checks again.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yanizio/forum/internal/logger"
	"github.com/yanizio/forum/internal/metrics"
)

// SubmitFunc performs the side effect of a valid form, usually an API call.
// It receives a snapshot of the values and runs outside the session lock.
type SubmitFunc func(ctx context.Context, values Values) error

// Option configures a Session.
type Option func(*Session)

// WithChecker installs the uniqueness checker.  Without one, unique fields are
// validated synchronously only.
func WithChecker(c UniquenessChecker) Option { return func(s *Session) { s.checker = c } }

// WithDebounce delays each uniqueness check by d; a newer value restarts it.
func WithDebounce(d time.Duration) Option { return func(s *Session) { s.debounce = d } }

// WithID sets the session identifier (the Store uses UUIDs).
func WithID(id string) Option { return func(s *Session) { s.id = id } }

// WithPrefill seeds values without touching them.  Prefilled values of unique
// fields count as available.
func WithPrefill(v Values) Option {
	return func(s *Session) {
		for k, val := range v {
			if _, ok := s.def.Field(k); ok {
				s.values[k] = val
				s.initial[k] = val
			}
		}
	}
}

type asyncResult struct {
	value string
	msg   string
	retry bool // the check itself failed; shown, but not a verdict
}

type asyncCheck struct {
	value   string
	done    chan struct{}
	cancel  context.CancelFunc
	now     chan struct{} // closed to skip the remaining debounce
	nowOnce sync.Once
}

func (c *asyncCheck) expedite() { c.nowOnce.Do(func() { close(c.now) }) }

// Session is safe for concurrent use.
type Session struct {
	id       string
	def      *FormDef
	checker  UniquenessChecker
	debounce time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	values    Values
	initial   Values
	touched   map[string]bool
	errors    ErrorMap
	results   map[string]asyncResult // last applied uniqueness result per field
	server    map[string]asyncResult // server-reported field errors, valid while the value is unchanged
	formError string
	inflight  map[string]*asyncCheck
	state     SubmissionState
	closed    bool
	lastUsed  time.Time
}

// NewSession returns an Idle session for def.
func NewSession(def *FormDef, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		def:      def,
		ctx:      ctx,
		cancel:   cancel,
		values:   make(Values, len(def.Fields)),
		initial:  make(Values),
		touched:  make(map[string]bool),
		results:  make(map[string]asyncResult),
		server:   make(map[string]asyncResult),
		inflight: make(map[string]*asyncCheck),
		lastUsed: time.Now(),
	}
	for _, o := range opts {
		o(s)
	}
	s.rebuild()
	return s
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Def returns the form definition.
func (s *Session) Def() *FormDef { return s.def }

// State returns the current submission state.
func (s *Session) State() SubmissionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Values returns a snapshot of the current values.
func (s *Session) Values() Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values.clone()
}

// Errors returns a snapshot of the current ErrorMap (all fields).
func (s *Session) Errors() ErrorMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors.clone()
}

// VisibleErrors returns errors for touched fields only.
func (s *Session) VisibleErrors() ErrorMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := ErrorMap{}
	for k, v := range s.errors {
		if s.touched[k] {
			out[k] = v
		}
	}
	return out
}

// Touched reports whether name was edited (or revealed by a submit).
func (s *Session) Touched(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched[name]
}

// Pending lists unique fields still awaiting a check, in definition order.
func (s *Session) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked()
}

// FormError returns the form-level message set by SetFormError.
func (s *Session) FormError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formError
}

// LastUsed reports when the session was last read or written.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) touch() { s.lastUsed = time.Now() }

// -----------------------------------------------------------------------------
// Mutation
// -----------------------------------------------------------------------------

// SetField stores value, marks the field touched, rebuilds the ErrorMap, and
// schedules a debounced uniqueness check when the field needs one.  Setting
// the value a field already holds changes nothing and launches nothing.
func (s *Session) SetField(name, value string) error {
	f, ok := s.def.Field(name)
	if !ok {
		return fmt.Errorf("%w %q in %s", ErrUnknownField, name, s.def.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.touch()

	s.values[name] = value
	s.touched[name] = true
	for _, dep := range s.def.dependents[name] {
		if s.values[dep] != "" {
			s.touched[dep] = true
		}
	}
	s.formError = ""
	s.rebuild()
	if f.Unique != "" && !s.failedFor(name, value) {
		s.scheduleLocked(f, s.debounce)
	}
	return nil
}

// SetServerError attaches a message reported by the API to field, e.g. a
// duplicate nickname at signup.  It clears itself once the value changes.
// An empty field name sets the form-level message instead.
func (s *Session) SetServerError(field, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if field == "" {
		s.formError = msg
		return
	}
	if _, ok := s.def.Field(field); !ok {
		s.formError = msg
		return
	}
	s.server[field] = asyncResult{value: s.values[field], msg: msg}
	s.touched[field] = true
	s.rebuild()
}

// SetFormError sets a message that belongs to no single field.
func (s *Session) SetFormError(msg string) { s.SetServerError("", msg) }

// ValidateAll runs every validator, merges cached uniqueness results for the
// current values, and reveals errors on every field.
func (s *Session) ValidateAll() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.touchAllLocked()
	s.rebuild()
	return s.outcomeLocked()
}

// Close cancels outstanding checks.  Further SetField and Submit calls fail
// with ErrClosed.  Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	for name, chk := range s.inflight {
		chk.cancel()
		delete(s.inflight, name)
	}
}

// -----------------------------------------------------------------------------
// Submit
// -----------------------------------------------------------------------------

// Submit validates the form and, when valid, calls fn exactly once.
//
//   - Validating or Submitting: returns ErrBusy, fn is not called.
//   - Succeeded: returns ErrSubmitted.
//   - Invalid: returns *ValidationError and restores Idle or Failed.
//   - fn error or panic: state becomes Failed and the error is returned.
//
// In-flight uniqueness checks are awaited; only ctx bounds the wait.
func (s *Session) Submit(ctx context.Context, fn SubmitFunc) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.state.Busy():
		s.mu.Unlock()
		metrics.FormSubmissions.WithLabelValues(s.def.ID, "busy").Inc()
		return ErrBusy
	case s.state == Succeeded:
		s.mu.Unlock()
		return ErrSubmitted
	}
	prev := s.state
	s.state = Validating
	s.touch()
	s.touchAllLocked()
	s.rebuild()
	for _, f := range s.def.Fields {
		if f.Unique != "" {
			s.scheduleLocked(f, 0)
		}
	}

	// Wait for checks to settle.  Lock is held when the loop exits.
	for len(s.inflight) > 0 {
		waits := make([]chan struct{}, 0, len(s.inflight))
		for _, chk := range s.inflight {
			waits = append(waits, chk.done)
		}
		s.mu.Unlock()
		for _, ch := range waits {
			select {
			case <-ch:
			case <-ctx.Done():
				s.mu.Lock()
				s.state = prev
				s.mu.Unlock()
				return ctx.Err()
			}
		}
		s.mu.Lock()
	}

	out := s.outcomeLocked()
	if !out.IsValid {
		s.state = prev
		s.mu.Unlock()
		metrics.FormSubmissions.WithLabelValues(s.def.ID, "invalid").Inc()
		return &ValidationError{Errors: out.Errors, Pending: out.Pending}
	}

	s.state = Submitting
	s.formError = ""
	values := s.values.clone()
	s.mu.Unlock()

	err := invoke(ctx, fn, values)

	s.mu.Lock()
	if err != nil {
		s.state = Failed
	} else {
		s.state = Succeeded
	}
	s.touch()
	s.mu.Unlock()

	if err != nil {
		metrics.FormSubmissions.WithLabelValues(s.def.ID, "failed").Inc()
		return err
	}
	metrics.FormSubmissions.WithLabelValues(s.def.ID, "succeeded").Inc()
	return nil
}

// invoke runs fn, converting a panic into an error so the state machine
// always settles.
func invoke(ctx context.Context, fn SubmitFunc, values Values) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Errorw("form submit panicked", "panic", r)
			err = fmt.Errorf("form: submit panicked: %v", r)
		}
	}()
	return fn(ctx, values)
}

// SubmitValue is Submit for callbacks that produce a result.  The zero R is
// returned whenever err is non-nil.
func SubmitValue[R any](ctx context.Context, s *Session, fn func(ctx context.Context, values Values) (R, error)) (R, error) {
	var out R
	err := s.Submit(ctx, func(ctx context.Context, v Values) error {
		r, err := fn(ctx, v)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Internals (caller holds s.mu)
// -----------------------------------------------------------------------------

func (s *Session) touchAllLocked() {
	for _, f := range s.def.Fields {
		s.touched[f.Name] = true
	}
}

// rebuild recomputes the ErrorMap from scratch.  Per field: the first failing
// validator wins, then a uniqueness result for the current value, then a
// server-reported error for the current value.
func (s *Session) rebuild() {
	errs := ErrorMap{}
	for _, f := range s.def.Fields {
		v := s.values[f.Name]
		if msg := s.syncError(f.Name, v); msg != "" {
			errs[f.Name] = msg
			continue
		}
		if r, ok := s.results[f.Name]; ok && r.value == v && r.msg != "" {
			errs[f.Name] = r.msg
			continue
		}
		if r, ok := s.server[f.Name]; ok && r.value == v {
			errs[f.Name] = r.msg
		}
	}
	s.errors = errs
}

func (s *Session) syncError(name, v string) string {
	for _, fn := range s.def.validators[name] {
		if msg := fn(v, s.values); msg != "" {
			return msg
		}
	}
	return ""
}

// needsCheck reports whether field f, at its current value, still lacks a
// uniqueness verdict.
func (s *Session) needsCheck(f FieldDef) bool {
	if f.Unique == "" || s.checker == nil {
		return false
	}
	v := s.values[f.Name]
	if v == "" || s.syncError(f.Name, v) != "" {
		return false
	}
	if init, ok := s.initial[f.Name]; ok && init == v {
		return false
	}
	r, ok := s.results[f.Name]
	return !ok || r.value != v || r.retry
}

// failedFor reports whether the last check of name at value failed.  Such a
// result is retried by the next Submit, not by re-posting the same value.
func (s *Session) failedFor(name, value string) bool {
	r, ok := s.results[name]
	return ok && r.retry && r.value == value
}

func (s *Session) pendingLocked() []string {
	var out []string
	for _, f := range s.def.Fields {
		// A failed check blocks through its message; it is pending again
		// only while a retry runs.
		if s.needsCheck(f) && (!s.failedFor(f.Name, s.values[f.Name]) || s.inflight[f.Name] != nil) {
			out = append(out, f.Name)
		}
	}
	return out
}

func (s *Session) outcomeLocked() Outcome {
	pending := s.pendingLocked()
	return Outcome{
		Errors:  s.errors.clone(),
		Pending: pending,
		IsValid: len(s.errors) == 0 && len(pending) == 0,
	}
}

// scheduleLocked starts a check for f's current value unless one is already
// running for it.  A running check for an older value is cancelled.
func (s *Session) scheduleLocked(f FieldDef, delay time.Duration) {
	v := s.values[f.Name]
	cur := s.inflight[f.Name]
	if cur != nil && cur.value == v {
		if delay == 0 {
			cur.expedite()
		}
		return
	}
	if cur != nil {
		cur.cancel()
		delete(s.inflight, f.Name)
	}
	if s.closed || !s.needsCheck(f) {
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	chk := &asyncCheck{value: v, done: make(chan struct{}), cancel: cancel, now: make(chan struct{})}
	s.inflight[f.Name] = chk
	go s.runCheck(ctx, f, chk, delay)
}

func (s *Session) runCheck(ctx context.Context, f FieldDef, chk *asyncCheck, delay time.Duration) {
	defer close(chk.done)
	defer chk.cancel()

	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			s.dropCheck(f.Name, chk)
			return
		case <-chk.now:
			t.Stop()
		case <-t.C:
		}
	}

	msg := s.safeCheck(ctx, f.Unique, chk.value)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[f.Name] != chk {
		return // superseded
	}
	delete(s.inflight, f.Name)
	if ctx.Err() != nil || s.values[f.Name] != chk.value {
		return // stale
	}
	s.results[f.Name] = asyncResult{value: chk.value, msg: msg, retry: msg == failedMsg(f.Unique)}
	s.rebuild()
}

func (s *Session) dropCheck(name string, chk *asyncCheck) {
	s.mu.Lock()
	if s.inflight[name] == chk {
		delete(s.inflight, name)
	}
	s.mu.Unlock()
}

func (s *Session) safeCheck(ctx context.Context, kind Kind, value string) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Errorw("uniqueness checker panicked", "kind", kind, "panic", r)
			msg = failedMsg(kind)
		}
	}()
	return s.checker.CheckUnique(ctx, kind, value)
}
