// Package v4l is the Video4Linux backend of the camera controller.
package v4l

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"booth-camera/pkg/camera"
	"booth-camera/pkg/types"
	"booth-camera/pkg/utils"
)

var logger *zap.SugaredLogger

func init() {
	logger = utils.GetLogger().Named("v4l")
}

const (
	DefaultSysfs  = "/sys/class/video4linux"
	DefaultDevDir = "/dev"

	DefaultWidth  = 1280
	DefaultHeight = 720
	DefaultFPS    = 30

	defaultSettle = 500 * time.Millisecond
)

type Config struct {
	Width    int
	Height   int
	FPS      int
	Settings types.CameraSettings
	// Settle is how long a new /dev node may take before udev finished
	// setting it up.
	Settle time.Duration
}

// Hardware enumerates capture nodes from sysfs and opens them with go4vl.
type Hardware struct {
	sysfs  string
	devDir string
	byID   string
	cfg    Config

	// known is the last descriptor seen per videoN node. Removed nodes are
	// gone from sysfs, so disconnects are reported from here.
	mu    sync.Mutex
	known map[string]camera.Descriptor
}

func New(cfg Config) *Hardware {
	return newHardware(DefaultSysfs, DefaultDevDir, cfg)
}

func newHardware(sysfs, devDir string, cfg Config) *Hardware {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = DefaultWidth, DefaultHeight
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	if cfg.Settle <= 0 {
		cfg.Settle = defaultSettle
	}
	return &Hardware{
		sysfs:  sysfs,
		devDir: devDir,
		byID:   filepath.Join(devDir, "v4l", "by-id"),
		cfg:    cfg,
		known:  make(map[string]camera.Descriptor),
	}
}

// nodes lists the videoN entries in sysfs ordered by N.
func (h *Hardware) nodes() ([]string, error) {
	entries, err := os.ReadDir(h.sysfs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var res []string
	for _, e := range entries {
		if _, ok := nodeNumber(e.Name()); ok {
			res = append(res, e.Name())
		}
	}
	sort.Slice(res, func(i, j int) bool {
		a, _ := nodeNumber(res[i])
		b, _ := nodeNumber(res[j])
		return a < b
	})

	return res, nil
}

func nodeNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, "video") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, "video"))
	return n, err == nil
}

// Devices returns the primary capture node of every camera. UVC cameras
// expose a second metadata node with index 1 which is skipped.
func (h *Hardware) Devices() ([]camera.Descriptor, error) {
	nodes, err := h.nodes()
	if err != nil {
		return nil, err
	}
	links := h.byIDLinks()

	res := make([]camera.Descriptor, 0, len(nodes))
	for _, node := range nodes {
		d, ok := h.describe(node, links)
		if ok {
			res = append(res, d)
		}
	}
	h.remember(res...)

	return res, nil
}

func (h *Hardware) remember(devs ...camera.Descriptor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, d := range devs {
		h.known[filepath.Base(d.Path)] = d
	}
}

// forget drops node from the snapshot and returns its last descriptor.
func (h *Hardware) forget(node string) (camera.Descriptor, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.known[node]
	delete(h.known, node)
	return d, ok
}

func (h *Hardware) describe(node string, links map[string]string) (camera.Descriptor, bool) {
	dir := filepath.Join(h.sysfs, node)
	if idx := readFirstLine(filepath.Join(dir, "index")); idx != "" && idx != "0" {
		return camera.Descriptor{}, false
	}
	n, _ := nodeNumber(node)

	d := camera.Descriptor{
		Path: filepath.Join(h.devDir, node),
		Name: readFirstLine(filepath.Join(dir, "name")),
	}
	if d.Name == "" {
		d.Name = d.Path
	}
	if _, err := os.Stat(d.Path); err == nil {
		d.Connected = true
	}

	parent, err := filepath.EvalSymlinks(filepath.Join(dir, "device"))
	if err != nil {
		parent = ""
	}
	d.External = strings.Contains(parent, "/usb")
	if d.External {
		if link, ok := links[node]; ok {
			d.UniqueID = link
		} else {
			d.UniqueID = "usb-" + node
		}
	} else {
		bus := filepath.Base(parent)
		if parent == "" {
			bus = "platform"
		}
		d.UniqueID = bus + ":" + strconv.Itoa(n)
	}

	return d, true
}

// byIDLinks maps videoN to its stable /dev/v4l/by-id name.
func (h *Hardware) byIDLinks() map[string]string {
	res := make(map[string]string)
	entries, err := os.ReadDir(h.byID)
	if err != nil {
		return res
	}
	for _, e := range entries {
		target, err := os.Readlink(filepath.Join(h.byID, e.Name()))
		if err != nil {
			continue
		}
		node := filepath.Base(target)
		if prev, ok := res[node]; ok && strings.HasSuffix(prev, "-index0") {
			continue
		}
		res[node] = e.Name()
	}

	return res
}

// Authorization is authorized when at least one capture node can be opened
// read-write and denied when none can. Linux has no consent prompt.
func (h *Hardware) Authorization() camera.Authorization {
	nodes, err := h.nodes()
	if err != nil || len(nodes) == 0 {
		return camera.Unknown
	}

	var denied int
	for _, node := range nodes {
		err := unix.Access(filepath.Join(h.devDir, node), unix.R_OK|unix.W_OK)
		switch {
		case err == nil:
			return camera.Authorized
		case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
			denied++
		}
	}
	if denied > 0 {
		return camera.Denied
	}

	return camera.Unknown
}

func (h *Hardware) RequestAccess(_ context.Context) camera.Authorization {
	return h.Authorization()
}

func (h *Hardware) NewSession() (camera.Session, error) {
	return newSession(h.cfg), nil
}

func readFirstLine(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	line := string(raw)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	return strings.TrimSpace(line)
}
