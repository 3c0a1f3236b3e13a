package core

import "github.com/pkg/errors"

// Kind tags a domain error with a machine-readable category so the API layer
// can map it to a status code without string matching.
type Kind string

const (
	MissingField         Kind = "missing_field"
	NotFound             Kind = "not_found"
	InvalidRole          Kind = "invalid_role"
	CapacityExceeded     Kind = "capacity_exceeded"
	AlreadyEnrolled      Kind = "already_enrolled"
	InvalidAnswerSet     Kind = "invalid_answer_set"
	Locked               Kind = "locked"
	CourseMismatch       Kind = "course_mismatch"
	DuplicateSubmission  Kind = "duplicate_submission"
	IncompleteSubmission Kind = "incomplete_submission"
	InvalidAnswer        Kind = "invalid_answer"
	ConstraintViolation  Kind = "constraint_violation"
)

// Error is a tagged domain error. IDs names the offending entities, if any.
type Error struct {
	Kind    Kind
	Message string
	IDs     []string
}

func NewError(kind Kind, msg string, ids ...string) *Error {
	return &Error{Kind: kind, Message: msg, IDs: ids}
}

func (err *Error) Error() string {
	return err.Message
}

// ErrorKind returns the Kind of err if it is (or wraps) an *Error.
func ErrorKind(err error) (Kind, bool) {
	if e, ok := errors.Cause(err).(*Error); ok {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err is an *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	k, ok := ErrorKind(err)
	return ok && k == kind
}

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
