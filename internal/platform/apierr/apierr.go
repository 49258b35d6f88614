package apierr

import (
	"fmt"
	"net/http"

	perrors "github.com/agrisense/agrisense-backend/internal/pkg/errors"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromError maps a service error onto the HTTP status and machine-readable
// code returned to clients. Internal failures keep a generic message.
func FromError(err error, internalMsg string) *Error {
	if err == nil {
		return nil
	}
	switch perrors.KindOf(err) {
	case perrors.KindNotFound:
		return New(http.StatusNotFound, string(perrors.KindNotFound), err)
	case perrors.KindInvalidRequest:
		return New(http.StatusBadRequest, string(perrors.KindInvalidRequest), err)
	case perrors.KindEngine:
		return New(http.StatusBadGateway, string(perrors.KindEngine), err)
	default:
		if internalMsg == "" {
			internalMsg = "unexpected failure"
		}
		return New(http.StatusInternalServerError, string(perrors.KindInternal), fmt.Errorf("%s", internalMsg))
	}
}
