package video

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"booth-camera/pkg/camera"
	"booth-camera/pkg/types"
	"booth-camera/pkg/utils"
)

var logger *zap.SugaredLogger

func init() {
	logger = utils.GetLogger().Named("video")
}

var (
	ErrRecording    = errors.New("a recording is already running")
	ErrNotRecording = errors.New("no recording is running")
	ErrNoFrames     = errors.New("no frame was recorded")
)

const DefaultFPS = 10

// FrameWaiter blocks until a texture has a newer frame.
type FrameWaiter interface {
	Wait(ctx context.Context, id int64, after uint64) (camera.Frame, uint64, error)
}

type Recording struct {
	Path     string        `json:"path"`
	Frames   int           `json:"frames"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Bytes    int64         `json:"bytes"`
	Duration time.Duration `json:"duration"`
}

// Recorder writes the preview frames of one texture into an AVI file.
type Recorder struct {
	frames FrameWaiter

	lock   sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	result Recording
	err    error
}

func NewRecorder(frames FrameWaiter) *Recorder {
	return &Recorder{frames: frames}
}

func (r *Recorder) Active() bool {
	r.lock.Lock()
	done := r.done
	r.lock.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Start records texture into path until Stop is called, the texture goes
// away or setting.MaxFrames frames were written.
func (r *Recorder) Start(texture int64, path string, setting types.RecordingSetting) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.cancel != nil {
		return ErrRecording
	}
	if setting.FPS <= 0 {
		setting.FPS = DefaultFPS
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.result = Recording{Path: path}
	r.err = nil
	go r.record(ctx, texture, path, setting, r.done)
	logger.Infof("recording texture %d to %s at %d fps", texture, path, setting.FPS)

	return nil
}

func (r *Recorder) record(ctx context.Context, texture int64, path string, setting types.RecordingSetting, done chan struct{}) {
	defer close(done)

	var (
		c     = newClip(path, setting.FPS)
		seq   uint64
		last  time.Time
		start = time.Now()
		step  = time.Second / time.Duration(setting.FPS)
		err   error
	)
	defer func() {
		res := Recording{
			Path:     path,
			Frames:   c.frames,
			Width:    c.width,
			Height:   c.height,
			Bytes:    c.bytes,
			Duration: time.Since(start),
		}
		if cerr := c.close(); cerr != nil && err == nil {
			err = cerr
		}
		r.lock.Lock()
		r.result, r.err = res, err
		r.lock.Unlock()
	}()

	for {
		var f camera.Frame
		f, seq, err = r.frames.Wait(ctx, texture, seq)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			return
		}
		if !last.IsZero() && f.At.Sub(last) < step {
			continue
		}
		last = f.At

		if err = c.add(f.Data); err != nil {
			if errors.Is(err, errBadFrame) {
				logger.Warnf("skip frame %d: %s", f.Seq, err)
				err = nil
				continue
			}
			return
		}
		if c.full(setting.MaxFrames) {
			return
		}
	}
}

// Stop ends the recording and returns what was written.
func (r *Recorder) Stop() (Recording, error) {
	r.lock.Lock()
	cancel, done := r.cancel, r.done
	r.lock.Unlock()
	if cancel == nil {
		return Recording{}, ErrNotRecording
	}
	cancel()
	<-done

	r.lock.Lock()
	defer r.lock.Unlock()
	r.cancel, r.done = nil, nil
	logger.Infof("recorded %d frames to %s", r.result.Frames, r.result.Path)

	return r.result, r.err
}

// Wait blocks until the recording ended on its own or ctx is done.
func (r *Recorder) Wait(ctx context.Context) error {
	r.lock.Lock()
	done := r.done
	r.lock.Unlock()
	if done == nil {
		return ErrNotRecording
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
