package netserver

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/finnstutzenstein/adcpd/internal/adcstate"
)

// StatusHub fans out CompleteState snapshots to browser dashboards over
// a plain JSON WebSocket at /ws/status — distinct from the ADCP-over-WS
// upgrade in server.go, which hand-rolls framing so it can carry raw
// binary descriptors with header slack. gorilla/websocket owns a
// connection's read/write loop outright and can't leave that slack, so
// it only fits this separate, JSON-only side channel.
type StatusHub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*statusClient]bool
}

type statusClient struct {
	conn *websocket.Conn
	send chan adcstate.CompleteState
}

// NewStatusHub constructs an empty hub.
func NewStatusHub() *StatusHub {
	return &StatusHub{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients: make(map[*statusClient]bool),
	}
}

// ServeHTTP upgrades the request and registers the resulting client.
func (h *StatusHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &statusClient{conn: conn, send: make(chan adcstate.CompleteState, 8)}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

// readPump does nothing but keep the connection's read side drained so
// gorilla answers control frames (ping/close) and notices disconnects;
// this hub is broadcast-only and accepts no commands from dashboards.
func (h *StatusHub) readPump(c *statusClient) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StatusHub) writePump(c *statusClient) {
	defer c.conn.Close()
	for snapshot := range c.send {
		if err := c.conn.WriteJSON(snapshot); err != nil {
			return
		}
	}
}

func (h *StatusHub) remove(c *statusClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ListenAndServe runs the dashboard's HTTP server on addr, serving the
// status socket at /ws/status until ctx is canceled. Unlike the raw ADCP
// listener, this is a conventional net/http server since every request
// here is genuine HTTP.
func (h *StatusHub) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/status", h.ServeHTTP)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Broadcast pushes a fresh snapshot to every connected dashboard,
// dropping it for any client whose send buffer is still full rather than
// blocking the state controller.
func (h *StatusHub) Broadcast(cs adcstate.CompleteState) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- cs:
		default:
		}
	}
}
