package passes

import (
	"errors"
	"fmt"
)

// ErrorType -
type ErrorType int

const (
	// ErrApplication a transformation cannot be applied at the given state.
	ErrApplication ErrorType = iota
	// ErrIO reading or writing the target failed.
	ErrIO
	// ErrProtocolViolation the caller broke the pass iteration protocol.
	ErrProtocolViolation
	// ErrInternal unexpected behaviour in a pass.
	ErrInternal
)

// Error -
type Error struct {
	Type   ErrorType
	Detail string
	Err    error
}

// NewError -
func NewError(t ErrorType, detail string) Error {
	return Error{
		Type:   t,
		Detail: detail,
	}
}

// NewErrorf -
func NewErrorf(t ErrorType, format string, arg ...interface{}) Error {
	return Error{
		Type:   t,
		Detail: fmt.Sprintf(format, arg...),
	}
}

// WrapIO wraps a read/write failure of target.
func WrapIO(target Target, err error) Error {
	return Error{
		Type:   ErrIO,
		Detail: target.Path(),
		Err:    err,
	}
}

func (e Error) Error() string {
	prefix := ""
	switch e.Type {
	case ErrApplication:
		prefix = "[Application]"
	case ErrIO:
		prefix = "[IO]"
	case ErrProtocolViolation:
		prefix = "[ProtocolViolation]"
	case ErrInternal:
		prefix = "[Internal]"
	}
	if e.Err != nil {
		return prefix + " " + e.Detail + ": " + e.Err.Error()
	}
	return prefix + " " + e.Detail
}

func (e Error) Unwrap() error {
	return e.Err
}

// IsType reports whether err carries a pass Error of type t.
func IsType(err error, t ErrorType) bool {
	var perr Error
	if errors.As(err, &perr) {
		return perr.Type == t
	}
	return false
}

func violation(format string, arg ...interface{}) {
	panic(NewErrorf(ErrProtocolViolation, format, arg...))
}
