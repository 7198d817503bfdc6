package camera

import (
	"fmt"
	"strconv"
	"strings"
)

// Resolve maps a UI facing id, or a legacy unique id string, to one
// descriptor. The first matching rule wins:
//
//  1. exact unique id
//  2. unique id ending in ":<id>"
//  3. external camera at position id-builtInCount
//
// When rule 3 lands out of range the first external camera is returned
// and the match is logged as degraded instead of failing.
func Resolve(devices []Descriptor, id string) (Descriptor, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Descriptor{}, newError(KindDeviceNotFound, "empty device id", nil)
	}

	for _, d := range devices {
		if d.UniqueID == id {
			return d, nil
		}
	}
	for _, d := range devices {
		if strings.HasSuffix(d.UniqueID, ":"+id) {
			return d, nil
		}
	}

	var builtIn int
	var externals []Descriptor
	for _, d := range devices {
		if d.External {
			externals = append(externals, d)
		} else {
			builtIn++
		}
	}

	n, err := strconv.Atoi(id)
	if err != nil || n < 0 {
		return Descriptor{}, newError(KindDeviceNotFound, fmt.Sprintf("no camera matches id %q", id), nil)
	}
	if len(externals) == 0 {
		return Descriptor{}, newError(KindDeviceNotFound, fmt.Sprintf("no camera matches id %q and no external camera is attached", id), nil)
	}

	if idx := n - builtIn; idx >= 0 && idx < len(externals) {
		return externals[idx], nil
	}
	logger.Warnf("device id %q is out of range (%d built-in, %d external), falling back to external camera %q",
		id, builtIn, len(externals), externals[0].UniqueID)

	return externals[0], nil
}
