package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a referenced farm, zone, vertex, event or job that
	// does not exist or does not belong to the expected parent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest marks bad input: inactive layer, wrong vertex type,
	// illegal zone/farm combination.
	ErrInvalidRequest = errors.New("invalid request")
)

type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindInvalidRequest Kind = "invalid_request"
	KindEngine         Kind = "engine_error"
	KindInternal       Kind = "internal"
)

// Error is a categorized failure. The message is user visible.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrInvalidRequest:
		return e.Kind == KindInvalidRequest
	}
	return false
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...any) error {
	return &Error{Kind: KindInvalidRequest, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind while keeping it reachable through errors.As.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: err.Error(), Err: err}
}

// kinded lets other packages (the engine client) report their own kind
// without importing this one.
type kinded interface {
	ErrorKind() string
}

// KindOf reports the category of err; unknown errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k kinded
	if errors.As(err, &k) {
		return Kind(k.ErrorKind())
	}
	return KindInternal
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsInvalid(err error) bool { return errors.Is(err, ErrInvalidRequest) }
