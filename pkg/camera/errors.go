package camera

import (
	"errors"
	"fmt"
)

// Kind is the machine readable class of a camera error.
type Kind string

const (
	KindPermissionDenied   Kind = "permissionDenied"
	KindDeviceNotFound     Kind = "deviceNotFound"
	KindDeviceNotConnected Kind = "deviceNotConnected"
	KindInvalidArgs        Kind = "invalidArgs"
	KindConfiguration      Kind = "configurationError"
	KindNotInitialized     Kind = "notInitialized"
	KindSessionNotRunning  Kind = "sessionNotRunning"
	KindPhoto              Kind = "photoError"
	KindCaptureTimeout     Kind = "captureTimeout"
	KindCancelled          Kind = "cancelled"
)

var (
	ErrPermissionDenied   = &Error{Kind: KindPermissionDenied}
	ErrDeviceNotFound     = &Error{Kind: KindDeviceNotFound}
	ErrDeviceNotConnected = &Error{Kind: KindDeviceNotConnected}
	ErrInvalidArgs        = &Error{Kind: KindInvalidArgs}
	ErrConfiguration      = &Error{Kind: KindConfiguration}
	ErrNotInitialized     = &Error{Kind: KindNotInitialized}
	ErrSessionNotRunning  = &Error{Kind: KindSessionNotRunning}
	ErrPhoto              = &Error{Kind: KindPhoto}
	ErrCaptureTimeout     = &Error{Kind: KindCaptureTimeout}
	ErrCancelled          = &Error{Kind: KindCancelled}
)

// Error carries a Kind plus a human readable detail. errors.Is matches any
// two errors of the same Kind, so the Err* values work as sentinels.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func newError(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the Kind of err, or "" when err is not a camera error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
