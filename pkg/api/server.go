// Package api exposes the camera controller to the booth UI over HTTP.
package api

import (
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vincent-vinf/go-jsend"
	"go.uber.org/zap"

	"booth-camera/pkg/camera"
	"booth-camera/pkg/storage"
	"booth-camera/pkg/texture"
	"booth-camera/pkg/types"
	"booth-camera/pkg/utils"
	"booth-camera/pkg/video"
)

var logger *zap.SugaredLogger

func init() {
	logger = utils.GetLogger().Named("api")
}

// Share is a toggleable file share of the capture directory.
type Share interface {
	Start()
	Stop()
	Running() bool
	Port() int
}

type Server struct {
	ctrl        *camera.Controller
	textures    *texture.Registry
	orientation *camera.OrientationTracker
	store       *storage.Store
	recorder    *video.Recorder
	share       Share
	hub         *Hub
	recording   types.RecordingSetting
	statics     string
}

type Options struct {
	Controller  *camera.Controller
	Textures    *texture.Registry
	Orientation *camera.OrientationTracker
	Store       *storage.Store
	Share       Share
	Recording   types.RecordingSetting
	// Statics is the directory of the booth UI, served at /. Optional.
	Statics string
}

func New(opts Options) *Server {
	return &Server{
		ctrl:        opts.Controller,
		textures:    opts.Textures,
		orientation: opts.Orientation,
		store:       opts.Store,
		recorder:    video.NewRecorder(opts.Textures),
		share:       opts.Share,
		hub:         NewHub(opts.Controller.Notifier()),
		recording:   opts.Recording,
		statics:     opts.Statics,
	}
}

func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(utils.Cors())
	if s.statics != "" {
		if err := registerStaticsDir(r, s.statics, "/"); err != nil {
			logger.Warnf("booth UI not served: %s", err)
		}
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, jsend.SimpleErr("page not found"))
	})

	apiRouter := r.Group("/api")
	apiRouter.GET("/cameras", s.listCameras)
	apiRouter.GET("/cameras/:id", s.resolveCamera)

	cameraRouter := apiRouter.Group("/camera")
	cameraRouter.POST("/init", s.initialize)
	cameraRouter.POST("/preview", s.startPreview)
	cameraRouter.POST("/picture", s.takePicture)
	cameraRouter.POST("/dispose", s.dispose)
	cameraRouter.GET("/permission", s.permission)
	cameraRouter.POST("/permission", s.requestAccess)
	cameraRouter.GET("/state", s.state)
	cameraRouter.GET("/events", gin.WrapH(s.hub))
	cameraRouter.POST("/recording", s.startRecording)
	cameraRouter.DELETE("/recording", s.stopRecording)

	textureRouter := apiRouter.Group("/textures")
	textureRouter.GET("/:id/frame", s.frame)
	textureRouter.GET("/:id/stream", s.stream)

	deviceRouter := apiRouter.Group("/device")
	deviceRouter.PUT("/orientation", s.setOrientation)
	deviceRouter.GET("/status", s.deviceStatus)
	deviceRouter.PUT("/webdav", s.ctlWebdav)

	apiRouter.GET("/captures", s.listCaptures)
	apiRouter.GET("/captures/:name", s.getCapture)

	return r
}

// Close stops recording and disconnects event clients.
func (s *Server) Close() {
	if s.recorder.Active() {
		if _, err := s.recorder.Stop(); err != nil {
			logger.Warnf("stop recording: %s", err)
		}
	}
	s.hub.Close()
}

func registerStaticsDir(group gin.IRoutes, dir, relativeGroup string) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("the specified directory %s does not exist", dir)
	}
	dir = filepath.ToSlash(filepath.Clean(dir))
	group.StaticFile(relativeGroup, filepath.Join(dir, "index.html"))
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			relativePath := path.Join(relativeGroup, strings.Replace(filepath.ToSlash(p), dir, "", 1))
			group.StaticFile(relativePath, p)
		}
		return nil
	})
}
