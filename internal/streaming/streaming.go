// Package streaming implements the four-stream fan-out engine of spec
// §4.9: per-type bounded queues, a shared descriptor pool, per-stream
// sender fibers with per-connection delivery tracking, and the
// backpressure contract (flush and stop rather than block or corrupt).
package streaming

import (
	"sync"

	"github.com/finnstutzenstein/adcpd/internal/pool"
	"github.com/finnstutzenstein/adcpd/internal/queue"
	"github.com/finnstutzenstein/adcpd/internal/wsframe"
)

// MaxConnections bounds concurrent subscribers (spec §5).
const MaxConnections = 8

// Stream identifies one of the four typed fan-outs.
type Stream int

const (
	StreamDebug Stream = iota
	StreamStatus
	StreamData
	StreamFFT
	numStreams
)

// SendTypeMask returns the wsframe.SendType bit this stream corresponds
// to, for callers constructing connection subscription masks.
func (s Stream) SendTypeMask() wsframe.SendType { return s.sendType() }

func (s Stream) sendType() wsframe.SendType {
	switch s {
	case StreamDebug:
		return wsframe.SendDebug
	case StreamStatus:
		return wsframe.SendStatus
	case StreamData:
		return wsframe.SendData
	case StreamFFT:
		return wsframe.SendFFT
	}
	return 0
}

// queueSizes are the four streams' bounded capacities, per spec §4.9.
var queueSizes = [numStreams]int{
	StreamDebug:  16,
	StreamStatus: 16,
	StreamData:   64,
	StreamFFT:    16,
}

// descriptor is the unit exchanged between producers and sender fibers
// (spec §3's "Data descriptor").
type descriptor struct {
	stream     Stream
	frame      *wsframe.Frame
	delivered  [MaxConnections]bool
	onComplete func()
}

// Connection is the subset of connection state the sender fibers need:
// its subscription mask and a framed-write sink. Implementations are
// provided by internal/netserver.
type Connection interface {
	// ID is this connection's stable slot index, used to index the
	// descriptor's delivered bitmap.
	ID() int
	// SendMask returns the subscription bitmask (spec §6).
	SendMask() byte
	// IsWebSocket reports which of TCPView/WSView to use for framing.
	IsWebSocket() bool
	// Write attempts a non-blocking (try-lock, one-tick) write of b.
	// ok=false means contention; the sender retries next tick.
	Write(b []byte) (ok bool)
}

// ConnectionSource enumerates currently active connections for fan-out.
type ConnectionSource interface {
	Active() []Connection
}

// Engine owns the four queues, the shared descriptor pool, and the
// HTTP-throttle flag.
type Engine struct {
	queues [numStreams]*queue.Queue
	descs  *pool.Pool[descriptor]
	conns  ConnectionSource

	mu            sync.Mutex
	httpPermitted bool

	lockThreshold   int
	releaseThreshold int

	onFlushNeeded func() // set by the dispatcher; stops acquisition & broadcasts state

	metrics Metrics
}

// Metrics receives optional introspection callbacks; implementations are
// provided by internal/metrics. A nil Metrics passed to NewEngine is
// replaced by a no-op implementation.
type Metrics interface {
	SetQueueDepth(stream Stream, depth int)
	SetHTTPPermitted(permitted bool)
	IncSlowConnection()
}

type noopMetrics struct{}

func (noopMetrics) SetQueueDepth(Stream, int)  {}
func (noopMetrics) SetHTTPPermitted(bool)      {}
func (noopMetrics) IncSlowConnection()         {}

// NewEngine constructs the four queues and a descriptor pool of combined
// capacity, wired to conns for fan-out.
func NewEngine(conns ConnectionSource, metrics Metrics) *Engine {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	total := 0
	for _, n := range queueSizes {
		total += n
	}
	e := &Engine{
		conns:            conns,
		descs:            pool.New[descriptor](total),
		httpPermitted:    true,
		lockThreshold:    queueSizes[StreamData] / 4,
		releaseThreshold: queueSizes[StreamData] / 8,
		metrics:          metrics,
	}
	for i := range e.queues {
		e.queues[i] = queue.New(queueSizes[i])
	}
	return e
}

// SetFlushCallback wires the action taken when backpressure demands a
// full flush (stop acquisition, drain queues, broadcast state).
func (e *Engine) SetFlushCallback(fn func()) { e.onFlushNeeded = fn }

// HTTPPermitted reports whether static-file serving should currently be
// allowed (spec §4.9 step 7 / §8's back-pressure property).
func (e *Engine) HTTPPermitted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.httpPermitted
}
