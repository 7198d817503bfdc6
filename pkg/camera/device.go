package camera

import (
	"strings"

	"go.uber.org/zap"

	"booth-camera/pkg/utils"
)

var logger *zap.SugaredLogger

func init() {
	logger = utils.GetLogger().Named("camera")
}

// Descriptor is one physical camera as reported by the OS. Descriptors are
// built fresh by every enumeration and never cached by the controller.
type Descriptor struct {
	// Path is the native handle, e.g. /dev/video0.
	Path string `json:"path"`
	// UniqueID is <bus>:<n> for built-in cameras and opaque for external ones.
	UniqueID  string `json:"uniqueId"`
	Name      string `json:"name"`
	External  bool   `json:"external"`
	Connected bool   `json:"connected"`
}

type Position string

const (
	PositionBuiltIn  Position = "builtIn"
	PositionExternal Position = "external"
)

func (d Descriptor) Position() Position {
	if d.External {
		return PositionExternal
	}
	return PositionBuiltIn
}

// suffix returns the part of the unique id after its last colon.
func (d Descriptor) suffix() string {
	i := strings.LastIndexByte(d.UniqueID, ':')
	if i < 0 {
		return d.UniqueID
	}
	return d.UniqueID[i+1:]
}

type HotPlugKind int

const (
	Connected HotPlugKind = iota
	Disconnected
)

func (k HotPlugKind) String() string {
	if k == Disconnected {
		return "disconnected"
	}
	return "connected"
}

type HotPlugEvent struct {
	Kind   HotPlugKind
	Device Descriptor
}
