package camera

import (
	"fmt"
	"sync"
)

type Orientation int

const (
	Portrait Orientation = iota
	PortraitUpsideDown
	LandscapeLeft
	LandscapeRight
)

var orientationNames = map[Orientation]string{
	Portrait:           "portrait",
	PortraitUpsideDown: "portraitUpsideDown",
	LandscapeLeft:      "landscapeLeft",
	LandscapeRight:     "landscapeRight",
}

func (o Orientation) String() string {
	if s, ok := orientationNames[o]; ok {
		return s
	}
	return fmt.Sprintf("orientation(%d)", int(o))
}

// Degrees is the rotation to apply to the sensor image so it is upright
// for a UI held in orientation o.
func (o Orientation) Degrees() int {
	switch o {
	case Portrait:
		return 90
	case PortraitUpsideDown:
		return 270
	case LandscapeRight:
		return 180
	default:
		return 0
	}
}

func ParseOrientation(s string) (Orientation, error) {
	for o, name := range orientationNames {
		if name == s {
			return o, nil
		}
	}
	return Portrait, newError(KindInvalidArgs, fmt.Sprintf("unknown orientation %q", s), nil)
}

// OrientationSource reports the current UI orientation.
type OrientationSource interface {
	Orientation() Orientation
}

// RotationObserver is the optional capability of an OrientationSource to
// push rotation angle changes. The returned func stops the observation.
type RotationObserver interface {
	ObserveRotation(fn func(degrees int)) (cancel func())
}

type fixedOrientation Orientation

func (f fixedOrientation) Orientation() Orientation { return Orientation(f) }

// OrientationTracker holds the orientation last reported by the UI and
// notifies rotation observers when it changes.
type OrientationTracker struct {
	mu        sync.Mutex
	current   Orientation
	next      uint64
	observers map[uint64]func(int)
}

func NewOrientationTracker(initial Orientation) *OrientationTracker {
	return &OrientationTracker{current: initial, observers: make(map[uint64]func(int))}
}

func (t *OrientationTracker) Orientation() Orientation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *OrientationTracker) Set(o Orientation) {
	t.mu.Lock()
	if o == t.current {
		t.mu.Unlock()
		return
	}
	t.current = o
	fns := make([]func(int), 0, len(t.observers))
	for _, fn := range t.observers {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(o.Degrees())
	}
}

func (t *OrientationTracker) ObserveRotation(fn func(degrees int)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.next
	t.next++
	t.observers[id] = fn

	return func() {
		t.mu.Lock()
		delete(t.observers, id)
		t.mu.Unlock()
	}
}
