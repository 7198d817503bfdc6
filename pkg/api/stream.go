package api

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/gin-gonic/gin"

	"booth-camera/pkg/camera"
)

func textureID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id == camera.NoTexture {
		badRequest(c, fmt.Sprintf("invalid texture id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}

// frame returns the latest frame of a texture.
func (s *Server) frame(c *gin.Context) {
	id, ok := textureID(c)
	if !ok {
		return
	}
	if !s.textures.Has(id) {
		notFound(c, "texture not found")
		return
	}
	f, ok := s.textures.Pull(id)
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.Header("X-Frame-Seq", strconv.FormatUint(f.Seq, 10))
	c.Data(http.StatusOK, "image/jpeg", f.Data)
}

// stream serves a texture as multipart MJPEG, one part per signalled frame,
// until the client leaves or the texture is unregistered.
func (s *Server) stream(c *gin.Context) {
	id, ok := textureID(c)
	if !ok {
		return
	}
	if !s.textures.Has(id) {
		notFound(c, "texture not found")
		return
	}

	mimeWriter := multipart.NewWriter(c.Writer)
	c.Header("Content-Type", fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", mimeWriter.Boundary()))
	c.Status(http.StatusOK)
	partHeader := make(textproto.MIMEHeader)
	partHeader.Add("Content-Type", "image/jpeg")

	ctx := c.Request.Context()
	var seq uint64
	for {
		f, next, err := s.textures.Wait(ctx, id, seq)
		if err != nil {
			logger.Debugf("stream of texture %d ended: %s", id, err)
			_ = mimeWriter.Close()
			return
		}
		seq = next

		partWriter, err := mimeWriter.CreatePart(partHeader)
		if err != nil {
			logger.Warnf("failed to create multi-part writer: %s", err)
			return
		}
		if _, err = partWriter.Write(f.Data); err != nil {
			logger.Warnf("failed to write image: %s", err)
			return
		}
		c.Writer.Flush()
	}
}
