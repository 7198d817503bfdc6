package video

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booth-camera/pkg/camera"
	"booth-camera/pkg/texture"
	"booth-camera/pkg/types"
	"booth-camera/pkg/utils/image"
)

func newTexture(t *testing.T) (*texture.Registry, *camera.Relay, int64) {
	t.Helper()
	reg := texture.NewRegistry()
	relay := camera.NewRelay()
	id := reg.Register(relay)
	relay.SetNotify(func() { reg.FrameAvailable(id) })
	return reg, relay, id
}

func push(t *testing.T, relay *camera.Relay, n int) {
	t.Helper()
	frame, err := image.TestPattern(64, 48, n)
	require.NoError(t, err)
	relay.Push(frame)
}

func TestRecorderMaxFrames(t *testing.T) {
	reg, relay, id := newTexture(t)
	r := NewRecorder(reg)
	path := filepath.Join(t.TempDir(), "clip.avi")

	require.NoError(t, r.Start(id, path, types.RecordingSetting{FPS: 1000, MaxFrames: 3}))
	assert.ErrorIs(t, r.Start(id, path, types.RecordingSetting{}), ErrRecording)

	go func() {
		for i := 0; i < 50 && r.Active(); i++ {
			if frame, err := image.TestPattern(64, 48, i); err == nil {
				relay.Push(frame)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))
	assert.False(t, r.Active())

	rec, err := r.Stop()
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Frames)
	assert.Equal(t, 64, rec.Width)
	assert.Equal(t, 48, rec.Height)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRecorderStopWithoutFrames(t *testing.T) {
	reg, _, id := newTexture(t)
	r := NewRecorder(reg)

	_, err := r.Stop()
	assert.ErrorIs(t, err, ErrNotRecording)

	require.NoError(t, r.Start(id, filepath.Join(t.TempDir(), "empty.avi"), types.RecordingSetting{}))
	_, err = r.Stop()
	assert.ErrorIs(t, err, ErrNoFrames)
}

func TestRecorderTextureGone(t *testing.T) {
	reg, relay, id := newTexture(t)
	r := NewRecorder(reg)
	path := filepath.Join(t.TempDir(), "gone.avi")

	require.NoError(t, r.Start(id, path, types.RecordingSetting{FPS: 1000}))
	push(t, relay, 0)
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 5*time.Millisecond)
	reg.Unregister(id)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))
	rec, err := r.Stop()
	assert.ErrorIs(t, err, texture.ErrUnknownTexture)
	assert.Equal(t, 1, rec.Frames)
}
