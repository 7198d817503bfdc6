package v4l

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booth-camera/pkg/camera"
)

func TestWatch(t *testing.T) {
	h := newTree(t, []fakeNode{
		{name: "video0", label: "unicam", index: "0", parent: "platform/csi"},
	}, nil)
	h.cfg.Settle = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan camera.HotPlugEvent, 4)
	errc := make(chan error, 1)
	go func() { errc <- h.Watch(ctx, events) }()
	// give the watcher time to register
	time.Sleep(50 * time.Millisecond)

	dir := filepath.Join(h.sysfs, "video2")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "name"), []byte("USB Cam\n"), 0o644))
	parent := filepath.Join(filepath.Dir(filepath.Dir(h.sysfs)), "devices", "usb2", "2-1")
	require.NoError(t, os.MkdirAll(parent, 0o755))
	require.NoError(t, os.Symlink(parent, filepath.Join(dir, "device")))
	require.NoError(t, os.WriteFile(filepath.Join(h.devDir, "video2"), nil, 0o600))

	ev := next(t, events)
	assert.Equal(t, camera.Connected, ev.Kind)
	assert.Equal(t, "USB Cam", ev.Device.Name)
	assert.True(t, ev.Device.External)

	require.NoError(t, os.Remove(filepath.Join(h.devDir, "video2")))
	ev = next(t, events)
	assert.Equal(t, camera.Disconnected, ev.Kind)
	assert.Equal(t, "usb-video2", ev.Device.UniqueID)
	assert.False(t, ev.Device.Connected)

	require.NoError(t, os.Remove(filepath.Join(h.devDir, "video0")))
	ev = next(t, events)
	assert.Equal(t, "csi:0", ev.Device.UniqueID)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchDisconnectAfterLateLink(t *testing.T) {
	h := newTree(t, nil, nil)
	h.cfg.Settle = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan camera.HotPlugEvent, 4)
	go func() { _ = h.Watch(ctx, events) }()
	time.Sleep(50 * time.Millisecond)

	dir := filepath.Join(h.sysfs, "video2")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "name"), []byte("USB Cam\n"), 0o644))
	parent := filepath.Join(filepath.Dir(filepath.Dir(h.sysfs)), "devices", "usb1", "1-1")
	require.NoError(t, os.MkdirAll(parent, 0o755))
	require.NoError(t, os.Symlink(parent, filepath.Join(dir, "device")))
	require.NoError(t, os.WriteFile(filepath.Join(h.devDir, "video2"), nil, 0o600))

	ev := next(t, events)
	assert.Equal(t, "usb-video2", ev.Device.UniqueID)

	// udev adds the stable link after the settle window
	require.NoError(t, os.Symlink("../../video2", filepath.Join(h.byID, "usb-Cam-video-index0")))
	devs, err := h.Devices()
	require.NoError(t, err)
	require.Len(t, devs, 1)
	active := devs[0]
	assert.Equal(t, "usb-Cam-video-index0", active.UniqueID)

	require.NoError(t, os.Remove(filepath.Join(h.devDir, "video2")))
	ev = next(t, events)
	assert.Equal(t, camera.Disconnected, ev.Kind)
	assert.Equal(t, active.UniqueID, ev.Device.UniqueID)
	assert.Equal(t, active.Path, ev.Device.Path)
}

func next(t *testing.T, events <-chan camera.HotPlugEvent) camera.HotPlugEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no hot-plug event")
		return camera.HotPlugEvent{}
	}
}
