package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vincent-vinf/go-jsend"

	"booth-camera/pkg/camera"
	"booth-camera/pkg/storage"
	"booth-camera/pkg/texture"
	"booth-camera/pkg/video"
)

// ErrorHeader carries the machine readable error kind.
const ErrorHeader = "X-Camera-Error"

var kindStatus = map[camera.Kind]int{
	camera.KindPermissionDenied:   http.StatusForbidden,
	camera.KindDeviceNotFound:     http.StatusNotFound,
	camera.KindDeviceNotConnected: http.StatusConflict,
	camera.KindInvalidArgs:        http.StatusBadRequest,
	camera.KindConfiguration:      http.StatusInternalServerError,
	camera.KindNotInitialized:     http.StatusConflict,
	camera.KindSessionNotRunning:  http.StatusConflict,
	camera.KindPhoto:              http.StatusInternalServerError,
	camera.KindCaptureTimeout:     http.StatusGatewayTimeout,
	camera.KindCancelled:          http.StatusConflict,
}

func cameraErr(c *gin.Context, err error) {
	kind := camera.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		internalErr(c, err)
		return
	}
	c.Header(ErrorHeader, string(kind))
	c.JSON(status, jsend.SimpleErr(err.Error()))
}

func badRequest(c *gin.Context, msg string) {
	c.Header(ErrorHeader, string(camera.KindInvalidArgs))
	c.JSON(http.StatusBadRequest, jsend.SimpleErr(string(camera.KindInvalidArgs)+": "+msg))
}

func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, jsend.SimpleErr(msg))
}

func internalErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidName):
		badRequest(c, err.Error())
	case errors.Is(err, texture.ErrUnknownTexture):
		notFound(c, err.Error())
	case errors.Is(err, video.ErrRecording), errors.Is(err, video.ErrNotRecording), errors.Is(err, video.ErrNoFrames):
		c.JSON(http.StatusConflict, jsend.SimpleErr(err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, jsend.SimpleErr(err.Error()))
	}
}
