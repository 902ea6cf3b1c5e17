package form

import (
	"errors"
	"fmt"
)

// SubmissionState tracks one FormSession through its submit lifecycle.
//
//	Idle --submit(valid)--> Submitting --ok--> Succeeded
//	                                  \--err--> Failed --submit--> ...
//	Idle|Failed --submit(invalid)--> Idle|Failed
//
// Validating sits between the submit call and the decision while in-flight
// uniqueness checks settle.
type SubmissionState int

const (
	Idle SubmissionState = iota
	Validating
	Submitting
	Succeeded
	Failed
)

func (s SubmissionState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Busy reports whether a submit is underway.
func (s SubmissionState) Busy() bool { return s == Validating || s == Submitting }

var (
	// ErrBusy is returned by Submit while another submit is underway.
	ErrBusy = errors.New("form: submit already in progress")
	// ErrSubmitted is returned by Submit after a successful submit.
	ErrSubmitted = errors.New("form: already submitted")
	// ErrClosed is returned once the session has been closed.
	ErrClosed = errors.New("form: session closed")
	// ErrUnknownForm is returned for a form or session id that does not exist.
	ErrUnknownForm = errors.New("form: unknown form")
	// ErrUnknownField is returned by SetField for a name the form lacks.
	ErrUnknownField = errors.New("form: unknown field")
)

// Outcome is the result of one full validation pass.  IsValid is true only
// when Errors is empty and no uniqueness check is pending.
type Outcome struct {
	Errors  ErrorMap
	Pending []string
	IsValid bool
}

// ValidationError is returned by Submit when the form is invalid.  It is a
// user error: callers re-render the form, they do not log it as a failure.
type ValidationError struct {
	Errors  ErrorMap
	Pending []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("form validation failed: %d error(s), %d pending check(s)", len(e.Errors), len(e.Pending))
}

// IsValidationError reports whether err came from a failed validation pass.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
