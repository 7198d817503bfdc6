package camera

import (
	"context"
	"sync"
)

// disconnectHandler is the part of the Controller the notifier may call.
type disconnectHandler interface {
	handleDisconnect(dev Descriptor) bool
}

type listener struct {
	id uint64
	fn func(HotPlugEvent)
}

// Notifier turns hardware connect/disconnect events into HotPlugEvents for
// subscribers. A disconnect of the active camera disposes the pipeline
// before any subscriber hears about it.
//
// The notifier does not own its target: Detach drops the reference so a
// late OS event never reaches a closed controller.
type Notifier struct {
	mu        sync.Mutex
	target    disconnectHandler
	listeners []listener
	next      uint64

	cancel context.CancelFunc
	done   chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) Attach(t disconnectHandler) {
	n.mu.Lock()
	n.target = t
	n.mu.Unlock()
}

func (n *Notifier) Detach() {
	n.mu.Lock()
	n.target = nil
	n.mu.Unlock()
}

// Subscribe registers fn for every event. Call the returned func to stop.
func (n *Notifier) Subscribe(fn func(HotPlugEvent)) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	id := n.next
	n.listeners = append(n.listeners, listener{id: id, fn: fn})

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, l := range n.listeners {
			if l.id == id {
				n.listeners = append(n.listeners[:i:i], n.listeners[i+1:]...)
				return
			}
		}
	}
}

// Dispatch handles one event synchronously.
func (n *Notifier) Dispatch(ev HotPlugEvent) {
	n.mu.Lock()
	target := n.target
	ls := make([]listener, len(n.listeners))
	copy(ls, n.listeners)
	n.mu.Unlock()

	logger.Infof("camera %s: %q (%s)", ev.Kind, ev.Device.Name, ev.Device.UniqueID)
	if ev.Kind == Disconnected && target != nil {
		if target.handleDisconnect(ev.Device) {
			logger.Warnf("active camera %s was unplugged, pipeline disposed", ev.Device.UniqueID)
		}
	}
	for _, l := range ls {
		l.fn(ev)
	}
}

// Start watches hw until ctx is done or Stop is called. Starting an
// already started notifier is a no-op.
func (n *Notifier) Start(ctx context.Context, hw Hardware) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.done = make(chan struct{})

	events := make(chan HotPlugEvent, 8)
	go func() {
		if err := hw.Watch(ctx, events); err != nil {
			logger.Errorf("hot-plug watch stopped: %s", err)
		}
	}()
	go func(done chan struct{}) {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				n.Dispatch(ev)
			}
		}
	}(n.done)
}

// Stop ends the watch and waits for the dispatch loop to exit.
func (n *Notifier) Stop() {
	n.mu.Lock()
	cancel, done := n.cancel, n.done
	n.cancel, n.done = nil, nil
	n.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
