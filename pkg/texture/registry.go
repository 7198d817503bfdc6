// Package texture is the frame hand-off point between a capture pipeline
// and whatever renders it.
package texture

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"booth-camera/pkg/camera"
	"booth-camera/pkg/utils"
)

var logger *zap.SugaredLogger

func init() {
	logger = utils.GetLogger().Named("texture")
}

var ErrUnknownTexture = errors.New("unknown texture")

type entry struct {
	src  camera.TextureSource
	seq  uint64
	wake chan struct{}
}

// Registry hands out texture handles. Handles are never reused within one
// registry.
type Registry struct {
	mu      sync.Mutex
	next    int64
	entries map[int64]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[int64]*entry)}
}

func (r *Registry) Register(src camera.TextureSource) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.entries[id] = &entry{src: src, wake: make(chan struct{})}
	logger.Debugf("registered texture %d", id)

	return id
}

// Unregister drops the handle and wakes its waiters. It reports false for
// a handle that was not registered.
func (r *Registry) Unregister(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	delete(r.entries, id)
	close(e.wake)
	logger.Debugf("unregistered texture %d", id)

	return true
}

// FrameAvailable marks a new frame for id. It never blocks.
func (r *Registry) FrameAvailable(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return
	}
	e.seq++
	close(e.wake)
	e.wake = make(chan struct{})
}

func (r *Registry) Pull(id int64) (camera.Frame, bool) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return camera.Frame{}, false
	}
	return e.src.Pull()
}

// Wait blocks until a frame newer than after has been signalled for id and
// returns it with its signal sequence.
func (r *Registry) Wait(ctx context.Context, id int64, after uint64) (camera.Frame, uint64, error) {
	for {
		r.mu.Lock()
		e, ok := r.entries[id]
		if !ok {
			r.mu.Unlock()
			return camera.Frame{}, after, ErrUnknownTexture
		}
		seq, wake := e.seq, e.wake
		r.mu.Unlock()

		if seq > after {
			if f, ok := e.src.Pull(); ok {
				return f, seq, nil
			}
			after = seq
			continue
		}

		select {
		case <-ctx.Done():
			return camera.Frame{}, after, ctx.Err()
		case <-wake:
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Has reports whether id is registered.
func (r *Registry) Has(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}
