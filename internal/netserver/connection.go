package netserver

import (
	"net"
	"sync/atomic"

	"github.com/google/uuid"
)

// connection is one accepted client, satisfying streaming.Connection. It
// mirrors the original firmware's per-connection task: a stable slot id,
// a subscription mask set once via CONNECTION.SET_TYPE, and a
// non-blocking per-connection write lock (spec §5: "try-lock, skip this
// tick on contention").
type connection struct {
	id       int
	tag      uuid.UUID
	conn     net.Conn
	isWS     bool
	sendMask atomic.Uint32 // byte value, widened for atomic access
	writeMu  chan struct{} // 1-buffered: acts as a non-blocking try-lock
	closed   atomic.Bool
}

func newConnection(id int, nc net.Conn, isWS bool) *connection {
	c := &connection{
		id:      id,
		tag:     uuid.New(),
		conn:    nc,
		isWS:    isWS,
		writeMu: make(chan struct{}, 1),
	}
	c.writeMu <- struct{}{}
	return c
}

func (c *connection) ID() int        { return c.id }
func (c *connection) SendMask() byte { return byte(c.sendMask.Load()) }
func (c *connection) IsWebSocket() bool { return c.isWS }

func (c *connection) setSendMask(mask byte) { c.sendMask.Store(uint32(mask)) }

// Write implements streaming.Connection: a try-locked, single-shot
// write. Contention (another sender fiber mid-write) or a closed
// connection both report ok=false so the caller retries next tick.
func (c *connection) Write(b []byte) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case <-c.writeMu:
	default:
		return false
	}
	defer func() { c.writeMu <- struct{}{} }()

	_, err := c.conn.Write(b)
	return err == nil
}

func (c *connection) close() {
	if c.closed.CompareAndSwap(false, true) {
		_ = c.conn.Close()
	}
}
