// Package fake provides a scriptable in-memory camera stack.
package fake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"booth-camera/pkg/camera"
	"booth-camera/pkg/utils/image"
)

type PhotoMode int

const (
	// PhotoSucceed answers every still request with PhotoData.
	PhotoSucceed PhotoMode = iota
	// PhotoFail answers every still request with PhotoErr.
	PhotoFail
	// PhotoNever keeps the callback until CompletePending is called.
	PhotoNever
)

var ErrInjected = errors.New("injected failure")

type Hardware struct {
	mu       sync.Mutex
	devices  []camera.Descriptor
	auth     camera.Authorization
	sessions []*Session
	events   chan camera.HotPlugEvent

	failStep      string
	photoMode     PhotoMode
	photoData     []byte
	photoErr      error
	frameInterval time.Duration
	frameSize     [2]int
}

func NewHardware(devices ...camera.Descriptor) *Hardware {
	return &Hardware{
		devices:   devices,
		auth:      camera.Authorized,
		events:    make(chan camera.HotPlugEvent, 16),
		photoData: []byte{0xff, 0xd8, 0xff, 0xd9},
		photoErr:  errors.New("sensor error"),
		frameSize: [2]int{320, 240},
	}
}

// BuiltIn and External build connected descriptors.
func BuiltIn(uid, name string) camera.Descriptor {
	return camera.Descriptor{Path: "/dev/" + uid, UniqueID: uid, Name: name, Connected: true}
}

func External(uid, name string) camera.Descriptor {
	return camera.Descriptor{Path: "/dev/" + uid, UniqueID: uid, Name: name, External: true, Connected: true}
}

func (h *Hardware) SetDevices(devices ...camera.Descriptor) {
	h.mu.Lock()
	h.devices = devices
	h.mu.Unlock()
}

func (h *Hardware) SetAuthorization(a camera.Authorization) {
	h.mu.Lock()
	h.auth = a
	h.mu.Unlock()
}

// FailAt makes the next sessions fail the named step: session, lock,
// input, still, video, commit, rotation or start. "" clears it.
func (h *Hardware) FailAt(step string) {
	h.mu.Lock()
	h.failStep = step
	h.mu.Unlock()
}

func (h *Hardware) SetPhotoMode(mode PhotoMode) {
	h.mu.Lock()
	h.photoMode = mode
	h.mu.Unlock()
}

// SetPhotoData sets the bytes PhotoSucceed answers with.
func (h *Hardware) SetPhotoData(data []byte) {
	h.mu.Lock()
	h.photoData = data
	h.mu.Unlock()
}

// GenerateFrames makes running sessions emit a JPEG test pattern every
// interval.
func (h *Hardware) GenerateFrames(interval time.Duration, width, height int) {
	h.mu.Lock()
	h.frameInterval = interval
	h.frameSize = [2]int{width, height}
	h.mu.Unlock()
}

func (h *Hardware) Devices() ([]camera.Descriptor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failStep == "devices" {
		return nil, ErrInjected
	}
	res := make([]camera.Descriptor, len(h.devices))
	copy(res, h.devices)
	return res, nil
}

func (h *Hardware) Authorization() camera.Authorization {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.auth
}

// RequestAccess grants access when nothing was decided yet.
func (h *Hardware) RequestAccess(_ context.Context) camera.Authorization {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.auth == camera.NotDetermined {
		h.auth = camera.Authorized
	}
	return h.auth
}

func (h *Hardware) NewSession() (camera.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failStep == "session" {
		return nil, ErrInjected
	}
	s := &Session{
		failStep:      h.failStep,
		photoMode:     h.photoMode,
		photoData:     h.photoData,
		photoErr:      h.photoErr,
		frameInterval: h.frameInterval,
		frameSize:     h.frameSize,
	}
	h.sessions = append(h.sessions, s)
	return s, nil
}

func (h *Hardware) Sessions() []*Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	res := make([]*Session, len(h.sessions))
	copy(res, h.sessions)
	return res
}

func (h *Hardware) LastSession() *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.sessions) == 0 {
		return nil
	}
	return h.sessions[len(h.sessions)-1]
}

func (h *Hardware) Watch(ctx context.Context, events chan<- camera.HotPlugEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-h.events:
			select {
			case events <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Plug attaches d and emits a Connected event.
func (h *Hardware) Plug(d camera.Descriptor) {
	d.Connected = true
	h.mu.Lock()
	h.devices = append(h.devices, d)
	h.mu.Unlock()
	h.events <- camera.HotPlugEvent{Kind: camera.Connected, Device: d}
}

// Unplug detaches the camera with the unique id and emits a Disconnected
// event.
func (h *Hardware) Unplug(uid string) {
	h.mu.Lock()
	var gone camera.Descriptor
	kept := h.devices[:0:0]
	for _, d := range h.devices {
		if d.UniqueID == uid {
			gone = d
			continue
		}
		kept = append(kept, d)
	}
	h.devices = kept
	h.mu.Unlock()

	gone.Connected = false
	h.events <- camera.HotPlugEvent{Kind: camera.Disconnected, Device: gone}
}

type Session struct {
	mu            sync.Mutex
	failStep      string
	photoMode     PhotoMode
	photoData     []byte
	photoErr      error
	frameInterval time.Duration
	frameSize     [2]int

	calls     []string
	locked    int
	unlocked  int
	input     *camera.Descriptor
	onFrame   func([]byte)
	committed bool
	rotations []int
	running   bool
	released  int
	stopGen   chan struct{}
	pending   []func([]byte, error)
}

func (s *Session) step(name string) error {
	s.calls = append(s.calls, name)
	if s.failStep == name {
		return fmt.Errorf("%s: %w", name, ErrInjected)
	}
	return nil
}

func (s *Session) LockConfiguration(_ camera.Descriptor) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.step("lock"); err != nil {
		return nil, err
	}
	s.locked++
	return func() {
		s.mu.Lock()
		s.unlocked++
		s.mu.Unlock()
	}, nil
}

func (s *Session) AttachInput(dev camera.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.step("input"); err != nil {
		return err
	}
	s.input = &dev
	return nil
}

func (s *Session) AttachStillOutput() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step("still")
}

func (s *Session) AttachVideoOutput(onFrame func([]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.step("video"); err != nil {
		return err
	}
	s.onFrame = onFrame
	return nil
}

func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.step("commit"); err != nil {
		return err
	}
	s.committed = true
	return nil
}

func (s *Session) SetRotation(degrees int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.step("rotation"); err != nil {
		return err
	}
	s.rotations = append(s.rotations, degrees)
	return nil
}

func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released > 0 {
		return errors.New("session released")
	}
	if err := s.step("start"); err != nil {
		return err
	}
	if s.running {
		return nil
	}
	s.running = true
	if s.frameInterval > 0 {
		s.stopGen = make(chan struct{})
		go s.generate(s.stopGen, s.onFrame)
	}
	return nil
}

func (s *Session) generate(stop chan struct{}, onFrame func([]byte)) {
	t := time.NewTicker(s.frameInterval)
	defer t.Stop()
	for n := 0; ; n++ {
		select {
		case <-stop:
			return
		case <-t.C:
			frame, err := image.TestPattern(s.frameSize[0], s.frameSize[1], n)
			if err == nil && onFrame != nil {
				onFrame(frame)
			}
		}
	}
}

func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if s.stopGen != nil {
		close(s.stopGen)
		s.stopGen = nil
	}
}

func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Session) CapturePhoto(done func([]byte, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return errors.New("session not running")
	}
	s.calls = append(s.calls, "photo")
	switch s.photoMode {
	case PhotoSucceed:
		data := s.photoData
		go done(data, nil)
	case PhotoFail:
		err := s.photoErr
		go done(nil, err)
	default:
		s.pending = append(s.pending, done)
	}
	return nil
}

// CompletePending fires every held photo callback, simulating hardware
// that answers late. It returns how many callbacks ran.
func (s *Session) CompletePending(data []byte, err error) int {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, done := range pending {
		done(data, err)
	}
	return len(pending)
}

// PushFrame delivers one frame to the attached video output.
func (s *Session) PushFrame(data []byte) {
	s.mu.Lock()
	onFrame := s.onFrame
	s.mu.Unlock()
	if onFrame != nil {
		onFrame(data)
	}
}

func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
	s.running = false
	if s.stopGen != nil {
		close(s.stopGen)
		s.stopGen = nil
	}
	s.input = nil
	s.onFrame = nil
	s.committed = false
}

func (s *Session) Released() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func (s *Session) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *Session) Rotations() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.rotations...)
}

// Locks returns how often the configuration lock was taken and released.
func (s *Session) Locks() (locked, unlocked int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked, s.unlocked
}
