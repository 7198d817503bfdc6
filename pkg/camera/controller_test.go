package camera_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booth-camera/pkg/camera"
	"booth-camera/pkg/camera/fake"
	"booth-camera/pkg/texture"
)

type harness struct {
	hw       *fake.Hardware
	textures *texture.Registry
	ctrl     *camera.Controller
}

func newHarness(t *testing.T, opts ...camera.Option) *harness {
	t.Helper()
	hw := fake.NewHardware(
		fake.BuiltIn("0x1234:0", "Integrated Camera"),
		fake.External("usb-ext-A", "USB Camera A"),
		fake.External("usb-ext-B", "USB Camera B"),
	)
	textures := texture.NewRegistry()
	opts = append([]camera.Option{camera.WithPhotoWriter(camera.TempWriter{Dir: t.TempDir()})}, opts...)
	ctrl := camera.NewController(hw, textures, opts...)
	t.Cleanup(func() { _ = ctrl.Close() })

	return &harness{hw: hw, textures: textures, ctrl: ctrl}
}

func (h *harness) preview(t *testing.T, id string) *fake.Session {
	t.Helper()
	_, err := h.ctrl.Initialize(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, h.ctrl.StartPreview())
	sess := h.hw.LastSession()
	require.Eventually(t, sess.Running, time.Second, 5*time.Millisecond)
	return sess
}

func TestCameras(t *testing.T) {
	h := newHarness(t)

	cams, err := h.ctrl.Cameras()
	require.NoError(t, err)
	require.Len(t, cams, 3)
	assert.Equal(t, "0", cams[0].ID)
	assert.Equal(t, "1", cams[1].ID)
	assert.Equal(t, "2", cams[2].ID)

	a, err := h.ctrl.Resolve("usb-ext-B")
	require.NoError(t, err)
	assert.Equal(t, "2", a.ID)
}

func TestInitialize(t *testing.T) {
	h := newHarness(t)

	id, err := h.ctrl.Initialize(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)
	assert.Equal(t, camera.StateReady, h.ctrl.State())

	dev, ok := h.ctrl.ActiveDevice()
	require.True(t, ok)
	assert.Equal(t, "usb-ext-A", dev.UniqueID)

	sess := h.hw.LastSession()
	assert.Equal(t, []string{"lock", "input", "still", "video", "commit", "rotation"}, sess.Calls())
	locked, unlocked := sess.Locks()
	assert.Equal(t, 1, locked)
	assert.Equal(t, 1, unlocked)
	assert.Equal(t, []int{90}, sess.Rotations())
}

func TestInitializeErrors(t *testing.T) {
	t.Run("empty id", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.ctrl.Initialize(context.Background(), " ")
		assert.ErrorIs(t, err, camera.ErrInvalidArgs)
	})

	t.Run("unknown id", func(t *testing.T) {
		h := newHarness(t)
		h.hw.SetDevices(fake.BuiltIn("bus:0", "Integrated Camera"))
		_, err := h.ctrl.Initialize(context.Background(), "4")
		assert.ErrorIs(t, err, camera.ErrDeviceNotFound)
		assert.Equal(t, camera.StateIdle, h.ctrl.State())
	})

	t.Run("not connected", func(t *testing.T) {
		h := newHarness(t)
		d := fake.External("usb-gone", "Gone")
		d.Connected = false
		h.hw.SetDevices(d)
		_, err := h.ctrl.Initialize(context.Background(), "usb-gone")
		assert.ErrorIs(t, err, camera.ErrDeviceNotConnected)
		assert.Empty(t, h.hw.Sessions())
	})

	t.Run("permission denied", func(t *testing.T) {
		h := newHarness(t)
		h.hw.SetAuthorization(camera.Denied)
		_, err := h.ctrl.Initialize(context.Background(), "0")
		assert.ErrorIs(t, err, camera.ErrPermissionDenied)
		_, err = h.ctrl.Cameras()
		assert.ErrorIs(t, err, camera.ErrPermissionDenied)
	})

	t.Run("cancelled context", func(t *testing.T) {
		h := newHarness(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := h.ctrl.Initialize(ctx, "0")
		assert.ErrorIs(t, err, camera.ErrCancelled)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, camera.KindCancelled, camera.KindOf(err))
		assert.Empty(t, h.hw.Sessions())
		assert.Equal(t, camera.StateIdle, h.ctrl.State())
	})

	t.Run("enumeration failure", func(t *testing.T) {
		h := newHarness(t)
		h.hw.FailAt("devices")
		_, err := h.ctrl.Initialize(context.Background(), "0")
		assert.ErrorIs(t, err, fake.ErrInjected)
		assert.Equal(t, camera.KindConfiguration, camera.KindOf(err))
	})
}

func TestRequestAccess(t *testing.T) {
	h := newHarness(t)
	h.hw.SetAuthorization(camera.NotDetermined)

	assert.Equal(t, camera.Authorized, h.ctrl.RequestAccess(context.Background()))
	assert.True(t, h.ctrl.Authorization().Granted())
}

func TestConfigurationRollback(t *testing.T) {
	for _, step := range []string{"lock", "input", "still", "video", "commit", "rotation"} {
		t.Run(step, func(t *testing.T) {
			h := newHarness(t)
			h.hw.FailAt(step)

			id, err := h.ctrl.Initialize(context.Background(), "0")
			assert.ErrorIs(t, err, camera.ErrConfiguration)
			assert.ErrorIs(t, err, fake.ErrInjected)
			assert.Equal(t, camera.NoTexture, id)
			assert.Equal(t, camera.StateIdle, h.ctrl.State())
			assert.Equal(t, 0, h.textures.Len())
			assert.Equal(t, camera.NoTexture, h.ctrl.Texture())

			sess := h.hw.LastSession()
			assert.Equal(t, 1, sess.Released())
			locked, unlocked := sess.Locks()
			assert.Equal(t, locked, unlocked)
		})
	}

	t.Run("session", func(t *testing.T) {
		h := newHarness(t)
		h.hw.FailAt("session")
		_, err := h.ctrl.Initialize(context.Background(), "0")
		assert.ErrorIs(t, err, camera.ErrConfiguration)
		assert.Equal(t, camera.StateIdle, h.ctrl.State())
	})

	t.Run("recovers", func(t *testing.T) {
		h := newHarness(t)
		h.hw.FailAt("commit")
		_, err := h.ctrl.Initialize(context.Background(), "0")
		require.Error(t, err)

		h.hw.FailAt("")
		_, err = h.ctrl.Initialize(context.Background(), "0")
		require.NoError(t, err)
		assert.Equal(t, camera.StateReady, h.ctrl.State())
	})
}

func TestSingleActivePipeline(t *testing.T) {
	h := newHarness(t)

	var textures []int64
	for _, id := range []string{"0", "1", "2", "1"} {
		tex, err := h.ctrl.Initialize(context.Background(), id)
		require.NoError(t, err)
		textures = append(textures, tex)
	}

	sessions := h.hw.Sessions()
	require.Len(t, sessions, 4)
	for _, s := range sessions[:3] {
		assert.Equal(t, 1, s.Released())
	}
	assert.Equal(t, 0, sessions[3].Released())
	assert.Equal(t, 1, h.textures.Len())
	assert.True(t, h.textures.Has(textures[3]))
	assert.Equal(t, []int64{0, 1, 2, 3}, textures)
}

func TestStartPreview(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.ctrl.StartPreview(), camera.ErrNotInitialized)

	sess := h.preview(t, "0")
	assert.Equal(t, camera.StatePreviewing, h.ctrl.State())
	require.NoError(t, h.ctrl.StartPreview())

	_, ok := h.ctrl.LatestFrame()
	assert.False(t, ok)
	sess.PushFrame([]byte("frame"))
	f, ok := h.ctrl.LatestFrame()
	require.True(t, ok)
	assert.Equal(t, []byte("frame"), f.Data)

	pulled, ok := h.textures.Pull(h.ctrl.Texture())
	require.True(t, ok)
	assert.Equal(t, f, pulled)
}

func TestTakePicture(t *testing.T) {
	h := newHarness(t)
	h.preview(t, "1")

	photo, err := h.ctrl.TakePicture(context.Background())
	require.NoError(t, err)
	data, err := os.ReadFile(photo.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff, 0xd9}, data)
	assert.Equal(t, int64(len(data)), photo.Size)
	assert.Equal(t, camera.StatePreviewing, h.ctrl.State())
}

func TestTakePictureErrors(t *testing.T) {
	t.Run("not initialized", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.ctrl.TakePicture(context.Background())
		assert.ErrorIs(t, err, camera.ErrNotInitialized)
	})

	t.Run("not running", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.ctrl.Initialize(context.Background(), "0")
		require.NoError(t, err)
		_, err = h.ctrl.TakePicture(context.Background())
		assert.ErrorIs(t, err, camera.ErrSessionNotRunning)
	})

	t.Run("hardware error", func(t *testing.T) {
		h := newHarness(t)
		h.hw.SetPhotoMode(fake.PhotoFail)
		h.preview(t, "0")
		_, err := h.ctrl.TakePicture(context.Background())
		assert.ErrorIs(t, err, camera.ErrPhoto)
	})
}

func TestTakePictureTimeout(t *testing.T) {
	h := newHarness(t, camera.WithCaptureTimeout(50*time.Millisecond))
	h.hw.SetPhotoMode(fake.PhotoNever)
	sess := h.preview(t, "1")

	start := time.Now()
	_, err := h.ctrl.TakePicture(context.Background())
	assert.ErrorIs(t, err, camera.ErrCaptureTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.False(t, h.ctrl.Status().CapturePending)

	// the delegate answering after the bound is ignored
	assert.Equal(t, 1, sess.CompletePending([]byte("late"), nil))
	assert.False(t, h.ctrl.Status().CapturePending)
}

func TestDisposeCancelsPendingCapture(t *testing.T) {
	h := newHarness(t)
	h.hw.SetPhotoMode(fake.PhotoNever)
	sess := h.preview(t, "0")

	errc := make(chan error, 1)
	go func() {
		_, err := h.ctrl.TakePicture(context.Background())
		errc <- err
	}()
	require.Eventually(t, func() bool { return h.ctrl.Status().CapturePending }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.ctrl.Dispose())
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, camera.ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("pending capture was dropped by dispose")
	}
	sess.CompletePending([]byte("late"), nil)
}

func TestDisposeIdempotent(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.Dispose())
	require.NoError(t, h.ctrl.Dispose())

	h.preview(t, "0")
	require.NoError(t, h.ctrl.Dispose())
	require.NoError(t, h.ctrl.Dispose())

	assert.Equal(t, 1, h.hw.LastSession().Released())
	assert.Equal(t, 0, h.textures.Len())
	assert.Equal(t, camera.StateIdle, h.ctrl.State())
	assert.Equal(t, camera.NoTexture, h.ctrl.Texture())
}

func TestLiveRotation(t *testing.T) {
	tracker := camera.NewOrientationTracker(camera.LandscapeLeft)
	h := newHarness(t, camera.WithOrientation(tracker))
	h.preview(t, "0")
	sess := h.hw.LastSession()

	tracker.Set(camera.LandscapeRight)
	tracker.Set(camera.Portrait)
	assert.Equal(t, []int{0, 180, 90}, sess.Rotations())

	require.NoError(t, h.ctrl.Dispose())
	tracker.Set(camera.PortraitUpsideDown)
	assert.Equal(t, []int{0, 180, 90}, sess.Rotations())
}

func TestDisconnectForcesTeardown(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.ctrl.Watch(ctx)

	var mu sync.Mutex
	var events []camera.HotPlugEvent
	var stateSeen string
	unsubscribe := h.ctrl.Notifier().Subscribe(func(ev camera.HotPlugEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
		stateSeen = h.ctrl.State()
	})
	defer unsubscribe()

	h.preview(t, "1")
	sess := h.hw.LastSession()

	h.hw.Unplug("usb-ext-B")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, camera.StatePreviewing, h.ctrl.State())

	h.hw.Unplug("usb-ext-A")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, camera.Disconnected, events[1].Kind)
	assert.Equal(t, "usb-ext-A", events[1].Device.UniqueID)
	assert.Equal(t, camera.StateIdle, stateSeen)
	mu.Unlock()

	assert.Equal(t, 1, sess.Released())
	assert.Equal(t, 0, h.textures.Len())

	h.hw.Plug(fake.External("usb-ext-C", "USB Camera C"))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 3 && events[2].Kind == camera.Connected
	}, time.Second, 5*time.Millisecond)
}

func TestClosedControllerIgnoresHotPlug(t *testing.T) {
	h := newHarness(t)
	h.preview(t, "0")
	sess := h.hw.LastSession()
	require.NoError(t, h.ctrl.Close())

	h.ctrl.Notifier().Dispatch(camera.HotPlugEvent{Kind: camera.Disconnected, Device: fake.BuiltIn("0x1234:0", "")})
	assert.Equal(t, 1, sess.Released())
}

func TestDisconnectCancelsPendingCapture(t *testing.T) {
	h := newHarness(t)
	h.hw.SetPhotoMode(fake.PhotoNever)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.ctrl.Watch(ctx)
	sess := h.preview(t, "1")

	errc := make(chan error, 2)
	go func() {
		_, err := h.ctrl.TakePicture(context.Background())
		errc <- err
	}()
	require.Eventually(t, func() bool { return h.ctrl.Status().CapturePending }, time.Second, 5*time.Millisecond)

	h.hw.Unplug("usb-ext-A")
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, camera.ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("pending capture was dropped by the disconnect")
	}

	// the delegate answering after teardown must not produce a second result
	sess.CompletePending([]byte("late"), nil)
	select {
	case err := <-errc:
		t.Fatalf("second capture result: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, camera.StateIdle, h.ctrl.State())
	assert.Equal(t, 1, sess.Released())
}

func TestDisconnectMatchesNativeHandle(t *testing.T) {
	h := newHarness(t)
	sess := h.preview(t, "1")

	// same node, reported under the id it had before its stable link existed
	gone := fake.External("usb-video2", "USB Camera A")
	gone.Path = "/dev/usb-ext-A"
	gone.Connected = false
	h.ctrl.Notifier().Dispatch(camera.HotPlugEvent{Kind: camera.Disconnected, Device: gone})

	assert.Equal(t, camera.StateIdle, h.ctrl.State())
	assert.Equal(t, 1, sess.Released())
	assert.Equal(t, 0, h.textures.Len())

	h.preview(t, "1")
	other := fake.External("usb-video9", "Other")
	other.Path = "/dev/video9"
	h.ctrl.Notifier().Dispatch(camera.HotPlugEvent{Kind: camera.Disconnected, Device: other})
	assert.Equal(t, camera.StatePreviewing, h.ctrl.State())
}
