package camera

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultCaptureTimeout bounds how long a still request waits for the
// hardware before resolving with ErrCaptureTimeout.
const DefaultCaptureTimeout = 8 * time.Second

type CaptureResult struct {
	Photo *Photo
	Err   error
}

type pendingCapture struct {
	seq   uint64
	timer *time.Timer
	done  chan CaptureResult
}

// coordinator owns the single pending capture slot. The hardware callback,
// the timer and a teardown race to resolve it; whoever clears the slot
// first resolves the request and the others become no-ops.
type coordinator struct {
	mu      sync.Mutex
	seq     uint64
	pending *pendingCapture

	timeout time.Duration
	writer  PhotoWriter
	now     func() time.Time
}

func newCoordinator(timeout time.Duration, writer PhotoWriter, now func() time.Time) *coordinator {
	return &coordinator{timeout: timeout, writer: writer, now: now}
}

// begin arms the timeout and issues the request. The returned channel
// receives exactly one result.
func (c *coordinator) begin(issue func(done func(data []byte, err error)) error) <-chan CaptureResult {
	c.mu.Lock()
	prev := c.pending
	c.seq++
	req := &pendingCapture{seq: c.seq, done: make(chan CaptureResult, 1)}
	c.pending = req
	req.timer = time.AfterFunc(c.timeout, func() {
		if c.resolve(req, CaptureResult{Err: newError(KindCaptureTimeout,
			fmt.Sprintf("no photo within %s, the camera may not support still capture", c.timeout), nil)}) {
			logger.Warnf("capture #%d timed out after %s", req.seq, c.timeout)
		}
	})
	c.mu.Unlock()

	if prev != nil {
		prev.timer.Stop()
		prev.done <- CaptureResult{Err: newError(KindCancelled, "superseded by a newer capture request", nil)}
	}

	err := issue(func(data []byte, err error) {
		c.deliver(req, data, err)
	})
	if err != nil {
		c.resolve(req, CaptureResult{Err: newError(KindPhoto, "capture request rejected", err)})
	}

	return req.done
}

// claim clears the slot if req still owns it.
func (c *coordinator) claim(req *pendingCapture) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != req {
		return false
	}
	c.pending = nil
	req.timer.Stop()

	return true
}

func (c *coordinator) resolve(req *pendingCapture, res CaptureResult) bool {
	if !c.claim(req) {
		return false
	}
	req.done <- res
	return true
}

func (c *coordinator) deliver(req *pendingCapture, data []byte, err error) {
	if !c.claim(req) {
		logger.Warnf("ignoring late callback for capture #%d", req.seq)
		return
	}
	if err != nil {
		req.done <- CaptureResult{Err: newError(KindPhoto, "", err)}
		return
	}

	path, err := c.writer.Save(data)
	if err != nil {
		req.done <- CaptureResult{Err: newError(KindPhoto, "persist photo", err)}
		return
	}
	logger.Infof("capture #%d saved %s to %s", req.seq, humanize.Bytes(uint64(len(data))), path)
	req.done <- CaptureResult{Photo: &Photo{Path: path, Size: int64(len(data)), CapturedAt: c.now()}}
}

// cancel resolves the outstanding request, if any, with ErrCancelled.
func (c *coordinator) cancel(reason string) {
	c.mu.Lock()
	req := c.pending
	c.mu.Unlock()
	if req == nil {
		return
	}
	if c.resolve(req, CaptureResult{Err: newError(KindCancelled, reason, nil)}) {
		logger.Infof("capture #%d cancelled: %s", req.seq, reason)
	}
}

func (c *coordinator) busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}
