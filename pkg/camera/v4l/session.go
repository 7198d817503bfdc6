package v4l

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"
	"golang.org/x/sys/unix"

	"booth-camera/pkg/camera"
)

// CtrlRotate is V4L2_CID_ROTATE.
const CtrlRotate v4l2.CtrlID = 0x00980922

const stopGrace = 500 * time.Millisecond

var (
	ErrNoInput    = errors.New("no input attached")
	ErrNotRunning = errors.New("stream not running")
	ErrBusy       = errors.New("device is configured by another process")
)

type session struct {
	cfg Config

	mu      sync.Mutex
	dev     *device.Device
	input   camera.Descriptor
	onFrame func([]byte)
	still   bool

	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	stills  []func([]byte, error)

	// released is set before Release stops the stream. A Start that lost
	// the race must not reopen the stream on a device about to close.
	released bool
}

func newSession(cfg Config) *session {
	return &session{cfg: cfg}
}

// LockConfiguration takes an exclusive flock on the device node so two
// processes never configure the same camera at once.
func (s *session) LockConfiguration(dev camera.Descriptor) (func(), error) {
	f, err := os.OpenFile(dev.Path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	if err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrBusy
		}
		return nil, err
	}

	return func() {
		if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
			logger.Warnf("unlock %s: %s", dev.Path, err)
		}
		_ = f.Close()
	}, nil
}

func (s *session) AttachInput(dev camera.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev != nil {
		return fmt.Errorf("input %s already attached", s.input.Path)
	}

	d, err := device.Open(
		dev.Path,
		device.WithBufferSize(2),
		device.WithPixFormat(v4l2.PixFormat{
			PixelFormat: v4l2.PixelFmtMJPEG,
			Width:       uint32(s.cfg.Width),
			Height:      uint32(s.cfg.Height),
		}),
		device.WithFPS(uint32(s.cfg.FPS)),
	)
	if err != nil {
		return err
	}
	s.dev = d
	s.input = dev
	logger.Infof("opened %s (%s) at %dx%d", dev.Path, dev.Name, s.cfg.Width, s.cfg.Height)

	return nil
}

// AttachStillOutput checks the negotiated format is compressed: stills are
// taken from the stream and must already be JPEG.
func (s *session) AttachStillOutput() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return ErrNoInput
	}

	pf, err := v4l2.GetPixFormat(s.dev.Fd())
	if err != nil {
		return err
	}
	if pf.PixelFormat != v4l2.PixelFmtMJPEG && pf.PixelFormat != v4l2.PixelFmtJPEG {
		return fmt.Errorf("%s does not deliver JPEG frames", s.input.Path)
	}
	s.still = true

	return nil
}

func (s *session) AttachVideoOutput(onFrame func([]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return ErrNoInput
	}
	s.onFrame = onFrame

	return nil
}

// Commit applies the configured controls. A control the camera does not
// know is logged and skipped.
func (s *session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return ErrNoInput
	}
	for k, v := range s.cfg.Settings {
		if err := s.dev.SetControlValue(k, v); err != nil {
			logger.Warnf("set ctrl(%d) to %d, err: %s", k, v, err)
		}
	}

	return nil
}

// SetRotation uses the rotate control. Most UVC cameras do not have it, in
// which case frames stay in sensor orientation.
func (s *session) SetRotation(degrees int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return ErrNoInput
	}
	if err := s.dev.SetControlValue(CtrlRotate, v4l2.CtrlValue(degrees)); err != nil {
		logger.Warnf("%s cannot rotate to %d: %s", s.input.Path, degrees, err)
	}

	return nil
}

func (s *session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil || s.released {
		return ErrNoInput
	}
	if s.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.dev.Start(ctx); err != nil {
		cancel()
		return err
	}
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	go s.stream(ctx, s.dev.GetOutput(), s.onFrame, s.done)

	return nil
}

// stream copies every frame out of the driver buffer, hands it to the video
// output and resolves the still requests queued since the last frame.
func (s *session) stream(ctx context.Context, frames <-chan []byte, onFrame func([]byte), done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				s.mu.Lock()
				s.running = false
				s.mu.Unlock()
				return
			}
			if len(frame) == 0 {
				continue
			}
			data := make([]byte, len(frame))
			copy(data, frame)

			if onFrame != nil {
				onFrame(data)
			}

			s.mu.Lock()
			stills := s.stills
			s.stills = nil
			s.mu.Unlock()
			for _, fn := range stills {
				fn(data, nil)
			}
		}
	}
}

func (s *session) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.running = false
	stills := s.stills
	s.stills = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
	case <-time.After(stopGrace):
		logger.Warnf("stream of %s did not stop within %s", s.input.Path, stopGrace)
	}
	for _, fn := range stills {
		fn(nil, ErrNotRunning)
	}
}

func (s *session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// CapturePhoto queues done for the next streamed frame.
func (s *session) CapturePhoto(done func([]byte, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrNotRunning
	}
	if !s.still {
		return errors.New("no still output attached")
	}
	s.stills = append(s.stills, done)

	return nil
}

func (s *session) Release() {
	s.mu.Lock()
	s.released = true
	s.mu.Unlock()
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev != nil {
		if err := s.dev.Close(); err != nil {
			logger.Warnf("close %s: %s", s.input.Path, err)
		}
		s.dev = nil
	}
	s.onFrame = nil
	s.still = false
}
