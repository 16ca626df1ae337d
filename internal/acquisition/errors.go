package acquisition

import (
	"errors"
	"fmt"
)

var (
	// ErrAcquisition matches every error returned by a Client.
	ErrAcquisition = errors.New("acquisition error")
	// ErrMalformedResponse is wrapped when the release service answered 2xx
	// with a body that does not match the expected shape.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrInvalidPackage is wrapped when a request is built from a package
	// that lacks required fields.
	ErrInvalidPackage = errors.New("invalid package")
)

// Error is a failed call to the release service.
type Error struct {
	Op         string // "update check", "deploy report", "download report"
	StatusCode int    // HTTP status, zero on transport or decoding failures
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: server returned %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports ErrAcquisition for every *Error.
func (e *Error) Is(target error) bool { return target == ErrAcquisition }
