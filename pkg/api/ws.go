package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"booth-camera/pkg/camera"
	"booth-camera/pkg/ov"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// the booth UI is served from the kiosk itself
		return true
	},
}

// Hub pushes camera change events to every connected UI.
type Hub struct {
	mu          sync.Mutex
	clients     map[*websocket.Conn]bool
	unsubscribe func()
}

// NewHub subscribes to n. Close stops the subscription.
func NewHub(n *camera.Notifier) *Hub {
	h := &Hub{clients: make(map[*websocket.Conn]bool)}
	h.unsubscribe = n.Subscribe(h.onCameraChange)
	return h
}

func (h *Hub) onCameraChange(ev camera.HotPlugEvent) {
	h.Broadcast(ov.CameraEvent{
		Event:    ev.Kind.String(),
		UniqueID: ev.Device.UniqueID,
		Name:     ev.Device.Name,
	})
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("websocket upgrade error: %s", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// keep the connection alive until the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Broadcast writes v as JSON to all clients. Writes are serialized by the
// hub lock since a websocket connection allows one writer at a time.
func (h *Hub) Broadcast(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("marshal event: %s", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Warnf("write event to %s: %s", conn.RemoteAddr(), err)
			_ = conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.Close()
		delete(h.clients, conn)
	}
}
