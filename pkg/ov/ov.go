package ov

import (
	"time"

	"github.com/vladimirvivien/go4vl/v4l2"
)

type InitRequest struct {
	DeviceID string `json:"deviceId"`
}

type Camera struct {
	ID       string `json:"id"`
	UniqueID string `json:"uniqueId"`
	Name     string `json:"name"`
	External bool   `json:"external"`
}

type Resolved struct {
	DeviceID string `json:"deviceId"`
	UniqueID string `json:"uniqueId"`
	Name     string `json:"name"`
	Position string `json:"position"`
}

type Texture struct {
	TextureID int64 `json:"textureId"`
}

type Result struct {
	Success bool `json:"success"`
}

type Picture struct {
	Path       string    `json:"path"`
	Size       string    `json:"size"`
	Bytes      int64     `json:"bytes"`
	CapturedAt time.Time `json:"capturedAt"`
}

type Permission struct {
	Status  string `json:"status"`
	Granted bool   `json:"granted"`
}

type Orientation struct {
	Orientation string `json:"orientation"`
}

// CameraEvent is the onCameraChange payload.
type CameraEvent struct {
	Event    string `json:"event"`
	UniqueID string `json:"uniqueId"`
	Name     string `json:"name"`
}

// Control describes one V4L2 control of a camera.
type Control struct {
	ID    v4l2.CtrlID    `json:"id"`
	Value v4l2.CtrlValue `json:"value"`
	Name  string         `json:"name"`

	IsMenu    bool     `json:"isMenu,omitempty"`
	MenuItems []string `json:"menuItems,omitempty"`

	Minimum int32 `json:"minimum"`
	Maximum int32 `json:"maximum"`
	Step    int32 `json:"step"`
}
