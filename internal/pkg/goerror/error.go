// Package goerror classifies failures so the transport edges can decide what
// to do with them: the HTTP router maps them to status codes and the broker
// handlers decide between ack and redelivery.
package goerror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("resource not found")
	// ErrConflict signals a lost optimistic concurrency race. Retrying is safe.
	ErrConflict = errors.New("resource conflict")
)

// Type tells whether retrying can help: Server failures may be transient,
// Validation failures never are.
type Type int

const (
	TypeServer Type = iota
	TypeBusiness
	TypeValidation
)

func (t Type) String() string {
	switch t {
	case TypeServer:
		return "server"
	case TypeBusiness:
		return "business"
	case TypeValidation:
		return "validation"
	default:
		return "unknown"
	}
}

type Code int

const (
	CodeInternal Code = iota
	CodeInvalidFormat
	CodeInvalidInput
	CodeNotFound
	CodeConflict
	// CodeUnprocessable is well formed input breaking a contract with an
	// external party.
	CodeUnprocessable
)

// Error carries a classification and a safe message next to the cause.
type Error struct {
	err     error
	msg     string
	errType Type
	code    Code
	fields  map[string]string
}

func (e *Error) Error() string {
	switch {
	case e.err != nil:
		return e.err.Error()
	case e.msg != "":
		return e.msg
	default:
		return e.errType.String() + " error"
	}
}

// String includes the classification, for debug logging.
func (e *Error) String() string {
	return fmt.Sprintf("%s/%d: %s: %v", e.errType, e.code, e.msg, e.err)
}

// Msg is the message that is safe to show a caller.
func (e *Error) Msg() string               { return e.msg }
func (e *Error) Type() Type                { return e.errType }
func (e *Error) Code() Code                { return e.code }
func (e *Error) Fields() map[string]string { return e.fields }
func (e *Error) Unwrap() error             { return e.err }

// NewServer wraps a failure of the service or one of its dependencies.
func NewServer(err error) error {
	return &Error{err: err, msg: "Internal server error", errType: TypeServer, code: CodeInternal}
}

// NewInvalidInput wraps a validation failure. Field messages are lifted from
// err when it exposes them through Values, as validator errors do.
func NewInvalidInput(err error) error {
	e := &Error{err: err, msg: "Validation error", errType: TypeValidation, code: CodeInvalidInput}

	var withFields interface{ Values() map[string]string }
	if errors.As(err, &withFields) {
		e.fields = withFields.Values()
	}
	return e
}

// NewInvalidFormat reports a payload that could not be decoded at all.
func NewInvalidFormat(msgs ...string) error {
	msg := "Invalid request body"
	if len(msgs) > 0 {
		msg = msgs[0]
	}
	return &Error{msg: msg, errType: TypeValidation, code: CodeInvalidFormat}
}

// IsType reports whether err carries an *Error of the given type.
func IsType(err error, t Type) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.errType == t
}
