package camera

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// NoTexture marks a pipeline without a registered texture.
const NoTexture int64 = -1

const (
	StateIdle        = "idle"
	StateConfiguring = "configuring"
	StateReady       = "ready"
	StatePreviewing  = "previewing"
	StateDisposed    = "disposed"

	evInitialize   = "initialize"
	evConfigured   = "configured"
	evFail         = "fail"
	evStartPreview = "start_preview"
	evDispose      = "dispose"
	evReset        = "reset"
)

// TextureSource is what the renderer pulls frames from.
type TextureSource interface {
	Pull() (Frame, bool)
}

// TextureRegistry hands out texture handles to the rendering surface.
type TextureRegistry interface {
	Register(src TextureSource) int64
	Unregister(id int64) bool
	FrameAvailable(id int64)
}

// pipeline is the single active capture session and everything it owns.
type pipeline struct {
	device       Descriptor
	session      Session
	relay        *Relay
	texture      int64
	stopRotation func()
}

func (p *pipeline) release(textures TextureRegistry) {
	if p.stopRotation != nil {
		p.stopRotation()
		p.stopRotation = nil
	}
	p.session.Stop()
	p.session.Release()
	if p.texture != NoTexture {
		textures.Unregister(p.texture)
		p.texture = NoTexture
	}
	p.relay.Clear()
}

type Option func(*Controller)

func WithCaptureTimeout(d time.Duration) Option {
	return func(c *Controller) { c.captureTimeout = d }
}

func WithPhotoWriter(w PhotoWriter) Option {
	return func(c *Controller) { c.writer = w }
}

// WithOrientation sets the orientation consulted at configuration time. If
// src also implements RotationObserver, rotation changes are applied live.
func WithOrientation(src OrientationSource) Option {
	return func(c *Controller) { c.orientation = src }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller owns the lifecycle of at most one capture pipeline:
// idle -> configuring -> ready -> previewing, and back to idle on dispose,
// on a failed configuration or when the active camera is unplugged.
type Controller struct {
	mu       sync.Mutex
	hw       Hardware
	textures TextureRegistry
	state    *fsm.FSM
	pipe     *pipeline

	capture  *coordinator
	notifier *Notifier

	captureTimeout time.Duration
	writer         PhotoWriter
	orientation    OrientationSource
	now            func() time.Time
}

func NewController(hw Hardware, textures TextureRegistry, opts ...Option) *Controller {
	c := &Controller{
		hw:             hw,
		textures:       textures,
		captureTimeout: DefaultCaptureTimeout,
		writer:         TempWriter{},
		orientation:    fixedOrientation(Portrait),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.state = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: evInitialize, Src: []string{StateIdle}, Dst: StateConfiguring},
			{Name: evConfigured, Src: []string{StateConfiguring}, Dst: StateReady},
			{Name: evFail, Src: []string{StateConfiguring}, Dst: StateIdle},
			{Name: evStartPreview, Src: []string{StateReady}, Dst: StatePreviewing},
			{Name: evDispose, Src: []string{StateConfiguring, StateReady, StatePreviewing}, Dst: StateDisposed},
			{Name: evReset, Src: []string{StateDisposed}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debugf("session %s -> %s (%s)", e.Src, e.Dst, e.Event)
			},
		},
	)
	c.capture = newCoordinator(c.captureTimeout, c.writer, c.now)
	c.notifier = NewNotifier()
	c.notifier.Attach(c)

	return c
}

// fire runs a state transition. Transitions never take the caller's
// context: a cancelled request must not leave the machine half way.
func (c *Controller) fire(event string) error {
	err := c.state.Event(context.Background(), event)
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return err
}

func (c *Controller) State() string {
	return c.state.Current()
}

func (c *Controller) Authorization() Authorization {
	return c.hw.Authorization()
}

func (c *Controller) RequestAccess(ctx context.Context) Authorization {
	return c.hw.RequestAccess(ctx)
}

func (c *Controller) devices() ([]Descriptor, error) {
	if auth := c.hw.Authorization(); auth.blocked() {
		return nil, newError(KindPermissionDenied, fmt.Sprintf("camera access is %s", auth), nil)
	}
	devs, err := c.hw.Devices()
	if err != nil {
		return nil, newError(KindConfiguration, "enumerate cameras", err)
	}
	return devs, nil
}

// Cameras enumerates the attached cameras with their UI facing ids.
func (c *Controller) Cameras() ([]Assignment, error) {
	devs, err := c.devices()
	if err != nil {
		return nil, err
	}
	return AssignIDs(devs), nil
}

// Resolve returns the camera id names together with the id it is listed
// under in the current enumeration.
func (c *Controller) Resolve(id string) (Assignment, error) {
	devs, err := c.devices()
	if err != nil {
		return Assignment{}, err
	}
	d, err := Resolve(devs, id)
	if err != nil {
		return Assignment{}, err
	}
	return Assignment{ID: lookupID(AssignIDs(devs), d), Device: d}, nil
}

// Initialize tears down any existing pipeline, then builds a new one for
// the camera id names and returns its texture handle.
func (c *Controller) Initialize(ctx context.Context, id string) (int64, error) {
	if strings.TrimSpace(id) == "" {
		return NoTexture, newError(KindInvalidArgs, "deviceId is required", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardown("camera reinitialized")

	devs, err := c.devices()
	if err != nil {
		return NoTexture, err
	}
	dev, err := Resolve(devs, id)
	if err != nil {
		return NoTexture, err
	}
	if !dev.Connected {
		return NoTexture, newError(KindDeviceNotConnected, fmt.Sprintf("camera %q is not connected", dev.UniqueID), nil)
	}
	if err = ctx.Err(); err != nil {
		return NoTexture, newError(KindCancelled, "initialize abandoned", err)
	}

	if err = c.fire(evInitialize); err != nil {
		return NoTexture, newError(KindConfiguration, "enter configuring", err)
	}
	p, err := c.configure(dev)
	if err != nil {
		if ferr := c.fire(evFail); ferr != nil {
			logger.Errorf("leave configuring: %s", ferr)
		}
		logger.Errorf("configure %s: %s", dev.UniqueID, err)
		return NoTexture, err
	}
	if err = c.fire(evConfigured); err != nil {
		p.release(c.textures)
		return NoTexture, newError(KindConfiguration, "enter ready", err)
	}
	c.pipe = p
	logger.Infof("camera %q (%s) ready on texture %d", dev.Name, dev.UniqueID, p.texture)

	return p.texture, nil
}

// configure builds the pipeline strictly in input, outputs, commit,
// connections order. On any error everything attached so far is released
// and no pipeline is returned.
func (c *Controller) configure(dev Descriptor) (*pipeline, error) {
	sess, err := c.hw.NewSession()
	if err != nil {
		return nil, newError(KindConfiguration, "create session", err)
	}
	p := &pipeline{device: dev, session: sess, relay: NewRelay(), texture: NoTexture}

	if err = c.attach(p); err != nil {
		p.release(c.textures)
		return nil, err
	}

	id := c.textures.Register(p.relay)
	p.texture = id
	p.relay.SetNotify(func() { c.textures.FrameAvailable(id) })

	if err = sess.SetRotation(c.orientation.Orientation().Degrees()); err != nil {
		p.release(c.textures)
		return nil, newError(KindConfiguration, "configure rotation", err)
	}
	if obs, ok := c.orientation.(RotationObserver); ok {
		p.stopRotation = obs.ObserveRotation(func(degrees int) {
			if err := sess.SetRotation(degrees); err != nil {
				logger.Warnf("apply rotation %d: %s", degrees, err)
			}
		})
	}

	return p, nil
}

func (c *Controller) attach(p *pipeline) error {
	unlock, err := p.session.LockConfiguration(p.device)
	if err != nil {
		return newError(KindConfiguration, "lock device for configuration", err)
	}
	defer unlock()

	if err = p.session.AttachInput(p.device); err != nil {
		return newError(KindConfiguration, "attach input", err)
	}
	if err = p.session.AttachStillOutput(); err != nil {
		return newError(KindConfiguration, "attach still output", err)
	}
	if err = p.session.AttachVideoOutput(p.relay.Push); err != nil {
		return newError(KindConfiguration, "attach video output", err)
	}
	if err = p.session.Commit(); err != nil {
		return newError(KindConfiguration, "commit configuration", err)
	}

	return nil
}

// StartPreview starts the session on its own goroutine and returns as soon
// as the run request has been issued, not when the first frame arrives.
func (c *Controller) StartPreview() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pipe == nil {
		return newError(KindNotInitialized, "camera not initialized", nil)
	}
	if c.state.Is(StatePreviewing) {
		return nil
	}
	if err := c.fire(evStartPreview); err != nil {
		return newError(KindNotInitialized, fmt.Sprintf("cannot preview in state %s", c.state.Current()), err)
	}

	sess := c.pipe.session
	issued := make(chan struct{})
	go func() {
		close(issued)
		if err := sess.Start(); err != nil {
			logger.Errorf("start session: %s", err)
		}
	}()
	<-issued

	return nil
}

// TakePicture captures one still. It returns once the request resolved:
// with the photo, ErrPhoto, ErrCaptureTimeout or ErrCancelled. Giving up
// through ctx does not cancel the request itself.
func (c *Controller) TakePicture(ctx context.Context) (*Photo, error) {
	c.mu.Lock()
	if c.pipe == nil || !(c.state.Is(StateReady) || c.state.Is(StatePreviewing)) {
		c.mu.Unlock()
		return nil, newError(KindNotInitialized, "camera not initialized", nil)
	}
	sess := c.pipe.session
	if !sess.Running() {
		c.mu.Unlock()
		return nil, newError(KindSessionNotRunning, "start the preview before taking a picture", nil)
	}
	done := c.capture.begin(sess.CapturePhoto)
	c.mu.Unlock()

	select {
	case res := <-done:
		return res.Photo, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dispose releases the active pipeline. Calling it while idle is a no-op.
func (c *Controller) Dispose() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardown("camera disposed")
	return nil
}

// teardown must be called with c.mu held.
func (c *Controller) teardown(reason string) {
	c.capture.cancel(reason)
	if c.pipe == nil {
		return
	}

	dev := c.pipe.device
	c.pipe.release(c.textures)
	c.pipe = nil
	if err := c.fire(evDispose); err != nil {
		logger.Errorf("dispose transition: %s", err)
	}
	if err := c.fire(evReset); err != nil {
		logger.Errorf("reset transition: %s", err)
	}
	logger.Infof("camera %s released: %s", dev.UniqueID, reason)
}

// handleDisconnect disposes the pipeline if dev is its input device. The
// native handle is matched too since a unique id can change while udev
// settles.
func (c *Controller) handleDisconnect(dev Descriptor) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pipe == nil || !sameDevice(c.pipe.device, dev) {
		return false
	}
	c.teardown("camera disconnected")
	return true
}

func sameDevice(a, b Descriptor) bool {
	if a.UniqueID == b.UniqueID {
		return true
	}
	return a.Path != "" && a.Path == b.Path
}

// ActiveDevice returns the input device of the current pipeline.
func (c *Controller) ActiveDevice() (Descriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pipe == nil {
		return Descriptor{}, false
	}
	return c.pipe.device, true
}

// Texture returns the texture handle of the current pipeline or NoTexture.
func (c *Controller) Texture() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pipe == nil {
		return NoTexture
	}
	return c.pipe.texture
}

// LatestFrame pulls the most recent preview frame.
func (c *Controller) LatestFrame() (Frame, bool) {
	c.mu.Lock()
	p := c.pipe
	c.mu.Unlock()
	if p == nil {
		return Frame{}, false
	}
	return p.relay.Pull()
}

// Notifier returns the hot-plug notifier bound to this controller.
func (c *Controller) Notifier() *Notifier {
	return c.notifier
}

// Watch starts relaying hot-plug events from the hardware.
func (c *Controller) Watch(ctx context.Context) {
	c.notifier.Start(ctx, c.hw)
}

// Close detaches the hot-plug notifier and disposes the pipeline.
func (c *Controller) Close() error {
	c.notifier.Detach()
	c.notifier.Stop()
	return c.Dispose()
}

type Status struct {
	State          string      `json:"state"`
	Device         *Descriptor `json:"device,omitempty"`
	Texture        int64       `json:"textureId"`
	Running        bool        `json:"running"`
	CapturePending bool        `json:"capturePending"`
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{State: c.state.Current(), Texture: NoTexture, CapturePending: c.capture.busy()}
	if c.pipe != nil {
		dev := c.pipe.device
		st.Device = &dev
		st.Texture = c.pipe.texture
		st.Running = c.pipe.session.Running()
	}
	return st
}
