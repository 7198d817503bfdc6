package video

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"

	"github.com/icza/mjpeg"
)

var errBadFrame = errors.New("frame is not a decodable jpeg")

// clip appends JPEG frames to an MJPEG AVI file. The file is created on the
// first frame and sized from that frame's header.
type clip struct {
	path string
	fps  int

	aw     mjpeg.AviWriter
	width  int
	height int
	frames int
	bytes  int64
}

func newClip(path string, fps int) *clip {
	return &clip{path: path, fps: fps}
}

func (c *clip) add(frame []byte) error {
	if c.aw == nil {
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(frame))
		if err != nil {
			return fmt.Errorf("%w: %s", errBadFrame, err)
		}
		aw, err := mjpeg.New(c.path, int32(cfg.Width), int32(cfg.Height), int32(c.fps))
		if err != nil {
			return err
		}
		c.aw, c.width, c.height = aw, cfg.Width, cfg.Height
	}
	if err := c.aw.AddFrame(frame); err != nil {
		return err
	}
	c.frames++
	c.bytes += int64(len(frame))

	return nil
}

func (c *clip) full(max int) bool {
	return max > 0 && c.frames >= max
}

// close finalizes the AVI index. A clip that never got a frame has no file.
func (c *clip) close() error {
	if c.aw == nil {
		return ErrNoFrames
	}
	return c.aw.Close()
}
