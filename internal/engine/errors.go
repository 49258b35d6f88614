package engine

import "fmt"

// EngineError is the single error type callers see from this package.
type EngineError struct {
	Op  string
	Msg string
	Err error
}

func (e *EngineError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Msg)
}

func (e *EngineError) Unwrap() error { return e.Err }

// ErrorKind tags the error for the HTTP error mapping.
func (e *EngineError) ErrorKind() string { return "engine_error" }

func wrapErr(op string, err error) *EngineError {
	if err == nil {
		return nil
	}
	if ee, ok := err.(*EngineError); ok {
		return ee
	}
	return &EngineError{Op: op, Msg: err.Error(), Err: err}
}
