package streaming_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finnstutzenstein/adcpd/internal/streaming"
)

type fakeConn struct {
	id       int
	mask     byte
	ws       bool
	mu       sync.Mutex
	received [][]byte
	refuse   bool
}

func (c *fakeConn) ID() int          { return c.id }
func (c *fakeConn) SendMask() byte   { return c.mask }
func (c *fakeConn) IsWebSocket() bool { return c.ws }
func (c *fakeConn) Write(b []byte) bool {
	if c.refuse {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := append([]byte(nil), b...)
	c.received = append(c.received, cp)
	return true
}

type fakeSource struct {
	mu    sync.Mutex
	conns []streaming.Connection
}

func (s *fakeSource) Active() []streaming.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]streaming.Connection, len(s.conns))
	copy(out, s.conns)
	return out
}

func TestSendDeliversToSubscribedConnection(t *testing.T) {
	conn := &fakeConn{id: 0, mask: byte(streaming.StreamData.SendTypeMask())}
	src := &fakeSource{conns: []streaming.Connection{conn}}
	e := streaming.NewEngine(src, nil)

	stop := make(chan struct{})
	go e.RunSender(streaming.StreamData, stop)
	defer close(stop)

	require.NoError(t, e.Send(streaming.StreamData, []byte{1, 2, 3}, nil))

	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return len(conn.received) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHTTPThrottleLocksAboveThreshold(t *testing.T) {
	src := &fakeSource{}
	e := streaming.NewEngine(src, nil)
	require.True(t, e.HTTPPermitted())

	// DATA queue size is 64; lock threshold is 64/4=16. Enqueue 16
	// without any connections to deliver to so they stay queued.
	for i := 0; i < 16; i++ {
		require.NoError(t, e.Send(streaming.StreamData, []byte{byte(i)}, nil))
	}
	require.False(t, e.HTTPPermitted())
}

func TestFlushAllDrainsQueues(t *testing.T) {
	src := &fakeSource{}
	e := streaming.NewEngine(src, nil)
	completed := 0
	for i := 0; i < 5; i++ {
		require.NoError(t, e.Send(streaming.StreamDebug, []byte{byte(i)}, func() { completed++ }))
	}
	e.FlushAll()
	require.Equal(t, 5, completed)
	require.True(t, e.HTTPPermitted())
}
