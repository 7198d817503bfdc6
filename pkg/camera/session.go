package camera

import (
	"context"
)

// Hardware is the native camera stack the Controller drives.
type Hardware interface {
	// Devices enumerates the attached cameras in OS order.
	Devices() ([]Descriptor, error)
	Authorization() Authorization
	// RequestAccess asks the OS for camera access and returns the outcome.
	RequestAccess(ctx context.Context) Authorization
	NewSession() (Session, error)
	// Watch sends connect/disconnect events to events until ctx is done.
	Watch(ctx context.Context, events chan<- HotPlugEvent) error
}

// Session is one native capture pipeline. The Controller serializes the
// configuration calls; Stop, Release and CapturePhoto may race with the
// streaming goroutine and must be safe for that.
type Session interface {
	// LockConfiguration takes exclusive configuration access to the device.
	// The returned func releases it and is always called.
	LockConfiguration(dev Descriptor) (unlock func(), err error)
	AttachInput(dev Descriptor) error
	AttachStillOutput() error
	// AttachVideoOutput registers the per-frame callback. The callback owns
	// the slice it is given.
	AttachVideoOutput(onFrame func(data []byte)) error
	Commit() error
	SetRotation(degrees int) error

	Start() error
	Stop()
	Running() bool

	// CapturePhoto requests one still. done may be called at most once,
	// arbitrarily late, or never.
	CapturePhoto(done func(data []byte, err error)) error

	// Release detaches and frees every input and output. It is idempotent.
	Release()
}
