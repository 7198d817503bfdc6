package api

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/vincent-vinf/go-jsend"

	"booth-camera/pkg/camera"
	"booth-camera/pkg/ov"
	"booth-camera/pkg/storage"
	"booth-camera/pkg/utils/ps"
)

const (
	webDavStart    = "start"
	webDavShutdown = "shutdown"
)

func (s *Server) listCameras(c *gin.Context) {
	cams, err := s.ctrl.Cameras()
	if err != nil {
		cameraErr(c, err)
		return
	}
	res := make([]ov.Camera, 0, len(cams))
	for _, a := range cams {
		res = append(res, ov.Camera{
			ID:       a.ID,
			UniqueID: a.Device.UniqueID,
			Name:     a.Device.Name,
			External: a.Device.External,
		})
	}

	c.JSON(http.StatusOK, jsend.Success(res))
}

func (s *Server) resolveCamera(c *gin.Context) {
	a, err := s.ctrl.Resolve(c.Param("id"))
	if err != nil {
		cameraErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(ov.Resolved{
		DeviceID: a.ID,
		UniqueID: a.Device.UniqueID,
		Name:     a.Device.Name,
		Position: string(a.Device.Position()),
	}))
}

func (s *Server) initialize(c *gin.Context) {
	var req ov.InitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	id, err := s.ctrl.Initialize(c.Request.Context(), req.DeviceID)
	if err != nil {
		cameraErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(ov.Texture{TextureID: id}))
}

func (s *Server) startPreview(c *gin.Context) {
	if err := s.ctrl.StartPreview(); err != nil {
		cameraErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(ov.Result{Success: true}))
}

func (s *Server) takePicture(c *gin.Context) {
	photo, err := s.ctrl.TakePicture(c.Request.Context())
	if err != nil {
		if camera.KindOf(err) == "" && c.Request.Context().Err() != nil {
			// client went away
			return
		}
		cameraErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(ov.Picture{
		Path:       photo.Path,
		Size:       humanize.Bytes(uint64(photo.Size)),
		Bytes:      photo.Size,
		CapturedAt: photo.CapturedAt,
	}))
}

func (s *Server) dispose(c *gin.Context) {
	if s.recorder.Active() {
		if _, err := s.recorder.Stop(); err != nil {
			logger.Warnf("stop recording on dispose: %s", err)
		}
	}
	if err := s.ctrl.Dispose(); err != nil {
		cameraErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(ov.Result{Success: true}))
}

func (s *Server) permission(c *gin.Context) {
	a := s.ctrl.Authorization()
	c.JSON(http.StatusOK, jsend.Success(ov.Permission{Status: string(a), Granted: a.Granted()}))
}

func (s *Server) requestAccess(c *gin.Context) {
	a := s.ctrl.RequestAccess(c.Request.Context())
	c.JSON(http.StatusOK, jsend.Success(ov.Permission{Status: string(a), Granted: a.Granted()}))
}

func (s *Server) state(c *gin.Context) {
	c.JSON(http.StatusOK, jsend.Success(s.ctrl.Status()))
}

func (s *Server) setOrientation(c *gin.Context) {
	var req ov.Orientation
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	o, err := camera.ParseOrientation(req.Orientation)
	if err != nil {
		cameraErr(c, err)
		return
	}
	s.orientation.Set(o)

	c.JSON(http.StatusOK, jsend.Success(ov.Orientation{Orientation: o.String()}))
}

func (s *Server) deviceStatus(c *gin.Context) {
	st, err := ps.Snapshot(s.store.Dir())
	if err != nil {
		internalErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(st))
}

func (s *Server) ctlWebdav(c *gin.Context) {
	if s.share == nil {
		notFound(c, "webdav is not configured")
		return
	}
	op := c.Query("op")
	switch op {
	case webDavStart:
		if s.share.Running() {
			c.JSON(http.StatusOK, jsend.Success("the webdav service is already enabled"))
			return
		}
		s.share.Start()
		c.JSON(http.StatusOK, jsend.Success(gin.H{"port": s.share.Port()}))
	case webDavShutdown:
		if !s.share.Running() {
			c.JSON(http.StatusOK, jsend.SimpleErr("the webdav service has been shut down"))
			return
		}
		s.share.Stop()
		c.JSON(http.StatusOK, jsend.Success(nil))
	default:
		badRequest(c, "unknown operation")
	}
}

func (s *Server) startRecording(c *gin.Context) {
	tex := s.ctrl.Texture()
	if tex == camera.NoTexture {
		cameraErr(c, camera.ErrNotInitialized)
		return
	}
	p, err := s.store.Path(storage.Videos, s.store.NewName(storage.Videos))
	if err != nil {
		internalErr(c, err)
		return
	}
	if err = s.recorder.Start(tex, p, s.recording); err != nil {
		internalErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(gin.H{"name": filepath.Base(p)}))
}

func (s *Server) stopRecording(c *gin.Context) {
	rec, err := s.recorder.Stop()
	if err != nil {
		internalErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(rec))
}

func captureKind(c *gin.Context) (storage.Kind, bool) {
	switch c.DefaultQuery("kind", string(storage.Images)) {
	case string(storage.Images):
		return storage.Images, true
	case string(storage.Videos):
		return storage.Videos, true
	}
	return "", false
}

func (s *Server) listCaptures(c *gin.Context) {
	kind, ok := captureKind(c)
	if !ok {
		badRequest(c, "kind must be images or videos")
		return
	}
	files, err := s.store.List(kind)
	if err != nil {
		internalErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(files))
}

func (s *Server) getCapture(c *gin.Context) {
	kind, ok := captureKind(c)
	if !ok {
		badRequest(c, "kind must be images or videos")
		return
	}
	f, info, err := s.store.Open(kind, c.Param("name"))
	if err != nil {
		if errors.Is(err, storage.ErrInvalidName) {
			badRequest(c, err.Error())
			return
		}
		notFound(c, "capture not found")
		return
	}
	defer f.Close()

	contentType := "image/jpeg"
	if kind == storage.Videos {
		contentType = "video/x-msvideo"
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, f, nil)
}
