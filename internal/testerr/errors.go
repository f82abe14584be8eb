// Package testerr defines the error taxonomy shared by the provisioner,
// the assertion library and the runner.
//
// Every failure the harness reasons about carries a Kind. The Kind decides
// two things: whether AssertThrows considers an outcome a match, and whether
// the runner treats the failure as fatal (abort the run after cleanup) or
// recoverable (log, record and continue).
package testerr

import (
	"errors"
	"fmt"
)

// Kind categorizes a harness error.
type Kind string

const (
	// KindNone is reported by KindOf for a nil error.
	KindNone Kind = ""

	// KindConnection indicates the test database could not be reached.
	KindConnection Kind = "CONNECTION"

	// KindUnknownDatabase indicates the server is reachable but the
	// test database does not exist yet.
	KindUnknownDatabase Kind = "UNKNOWN_DATABASE"

	// KindSchemaClone indicates the reference schema could not be copied.
	KindSchemaClone Kind = "SCHEMA_CLONE"

	// KindConstraintViolation indicates the database rejected a write
	// breaking a uniqueness, foreign-key or not-null rule.
	KindConstraintViolation Kind = "CONSTRAINT_VIOLATION"

	// KindAssertion indicates an assertion primitive failed.
	KindAssertion Kind = "ASSERTION"

	// KindSuiteExecution indicates a suite failed outside any named test.
	KindSuiteExecution Kind = "SUITE_EXECUTION"

	// KindQuery covers every other database error.
	KindQuery Kind = "QUERY"

	// KindUnknown is reported for errors that carry no Kind.
	KindUnknown Kind = "UNKNOWN"
)

// Severity is the two-valued recoverable/fatal category of a Kind.
type Severity int

const (
	Recoverable Severity = iota
	Fatal
)

func (s Severity) String() string {
	if s == Fatal {
		return "fatal"
	}
	return "recoverable"
}

// Severity reports whether errors of this kind abort a run.
func (k Kind) Severity() Severity {
	if k == KindConnection {
		return Fatal
	}
	return Recoverable
}

// Error is a classified harness error.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Op names the operation that failed (e.g. "connect", "clone users").
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without an underlying cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap classifies err under kind. Returns nil when err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var kinded interface{ ErrorKind() Kind }
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.As(err, &kinded) {
		return kinded.ErrorKind()
	}
	return KindUnknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsFatal reports whether err should abort the run.
func IsFatal(err error) bool {
	return err != nil && KindOf(err).Severity() == Fatal
}
