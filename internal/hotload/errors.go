package hotload

import (
	"errors"
	"fmt"
)

var (
	// ErrNativeBoundary matches every *NativeError.
	ErrNativeBoundary = errors.New("native boundary error")
	// ErrPrecondition matches every *PreconditionError.
	ErrPrecondition = errors.New("precondition failed")
	// ErrNoPresenter is returned by Sync when a dialog is requested but the
	// Client has no Presenter.
	ErrNoPresenter = errors.New("update dialog requested but no presenter configured")

	errEmptyResult = errors.New("empty result")
)

// NativeError is a failed NativeBridge call.
type NativeError struct {
	Op  string
	Err error
}

func (e *NativeError) Error() string {
	return fmt.Sprintf("native %s: %v", e.Op, e.Err)
}

func (e *NativeError) Unwrap() error { return e.Err }

// Is reports ErrNativeBoundary for every *NativeError.
func (e *NativeError) Is(target error) bool { return target == ErrNativeBoundary }

func nativeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &NativeError{Op: op, Err: err}
}

// PreconditionError is returned before any side effect is attempted.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Is reports ErrPrecondition for every *PreconditionError.
func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }
