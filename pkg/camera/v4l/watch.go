package v4l

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"booth-camera/pkg/camera"
)

// Watch reports cameras appearing and disappearing under /dev until ctx is
// done. Removed nodes no longer exist in sysfs, so the descriptor reported
// for a disconnect is the one seen when the camera was last enumerated,
// either here or by Devices.
func (h *Hardware) Watch(ctx context.Context, events chan<- camera.HotPlugEvent) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err = w.Add(h.devDir); err != nil {
		return err
	}

	devs, err := h.Devices()
	if err != nil {
		logger.Warnf("initial enumeration: %s", err)
	}
	logger.Infof("watching %s for cameras, %d known", h.devDir, len(devs))

	emit := func(ev camera.HotPlugEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("watch %s: %s", h.devDir, err)
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			node := filepath.Base(e.Name)
			if _, ok := nodeNumber(node); !ok {
				continue
			}

			switch {
			case e.Has(fsnotify.Create):
				// udev creates the node before sysfs attributes and
				// permissions are final.
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(h.cfg.Settle):
				}
				d, ok := h.describe(node, h.byIDLinks())
				if !ok {
					continue
				}
				h.remember(d)
				if !emit(camera.HotPlugEvent{Kind: camera.Connected, Device: d}) {
					return nil
				}
			case e.Has(fsnotify.Remove):
				d, ok := h.forget(node)
				if !ok {
					continue
				}
				d.Connected = false
				if !emit(camera.HotPlugEvent{Kind: camera.Disconnected, Device: d}) {
					return nil
				}
			}
		}
	}
}
