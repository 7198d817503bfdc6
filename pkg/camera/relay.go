package camera

import (
	"sync"
	"time"
)

// Frame is one decoded video sample. Data is never modified after the
// frame has been published, so a pulled Frame can be kept freely.
type Frame struct {
	Data []byte
	Seq  uint64
	At   time.Time
}

// Relay keeps only the most recent frame. Renderers pull it when they want
// to draw; Push only raises a lightweight "frame available" signal.
type Relay struct {
	mu     sync.Mutex
	latest Frame
	seq    uint64
	notify func()
}

func NewRelay() *Relay {
	return &Relay{}
}

// SetNotify installs the frame available signal.
func (r *Relay) SetNotify(fn func()) {
	r.mu.Lock()
	r.notify = fn
	r.mu.Unlock()
}

// Push replaces the latest frame, dropping whatever the renderer did not
// pull in time. The relay takes ownership of data.
func (r *Relay) Push(data []byte) {
	r.mu.Lock()
	r.seq++
	r.latest = Frame{Data: data, Seq: r.seq, At: time.Now()}
	notify := r.notify
	r.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// Pull returns the latest frame without blocking.
func (r *Relay) Pull() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.latest.Data != nil
}

// Clear drops the buffered frame and the signal.
func (r *Relay) Clear() {
	r.mu.Lock()
	r.latest = Frame{}
	r.notify = nil
	r.mu.Unlock()
}
