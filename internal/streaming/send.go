package streaming

import "errors"

// ErrDescriptorPoolFull and ErrQueueFull are returned by Send on the two
// failure paths spec §4.9 step 5 calls out: both trigger the same
// backpressure response in the caller (set slow-connection, stop
// acquisition, flush, broadcast).
var (
	ErrDescriptorPoolFull = errors.New("streaming: descriptor pool exhausted")
	ErrQueueFull          = errors.New("streaming: queue full")
)

// Send allocates a descriptor for payload, frames it for both TCP and WS
// subscribers, enqueues it on stream, and runs the opportunistic GC pass.
// It never blocks: on either failure path it frees any partial
// allocation, invokes onFlushNeeded, increments the slow-connection
// metric, and returns an error — the caller (the value-buffer packer or
// the FFT worker) is expected to treat any error identically, per the
// backpressure contract.
func (e *Engine) Send(stream Stream, payload []byte, onComplete func()) error {
	idx, ok := e.descs.Allocate()
	if !ok {
		e.triggerFlush()
		return ErrDescriptorPoolFull
	}
	d := e.descs.Get(idx)
	d.stream = stream
	d.frame = newFrameFor(payload)
	d.delivered = [MaxConnections]bool{}
	d.onComplete = onComplete

	if err := e.queues[stream].Enqueue(idx); err != nil {
		e.descs.Free(idx)
		e.triggerFlush()
		return ErrQueueFull
	}

	e.gcPass(stream)
	e.updateHTTPThrottle()
	return nil
}

func (e *Engine) triggerFlush() {
	e.metrics.IncSlowConnection()
	if e.onFlushNeeded != nil {
		e.onFlushNeeded()
	}
}

// gcPass frees only the head-of-queue descriptors the marker has already
// passed, for queues not currently mid-iteration (spec §4.9 step 6:
// "Opportunistic GC"). It must never Dequeue an entry the marker hasn't
// reached yet: that entry is still owed to a subscriber, and freeing its
// slot would let a concurrent Send on any stream reallocate and overwrite
// it out from under the sender fiber.
func (e *Engine) gcPass(stream Stream) {
	q := e.queues[stream]
	if q.MarkerUpdating() {
		return
	}
	for n := q.Behind(); n > 0; n-- {
		idx, ok := q.Dequeue()
		if !ok {
			break
		}
		d := e.descs.Get(idx)
		e.descs.Free(idx)
		if d.onComplete != nil {
			d.onComplete()
		}
	}
	e.metrics.SetQueueDepth(stream, q.Len())
}

func allDelivered(d *descriptor) bool {
	for _, v := range d.delivered {
		if !v {
			return false
		}
	}
	return true
}

// updateHTTPThrottle implements spec §4.9 step 7: crossing
// lock_http_threshold on DATA queue depth clears http_permitted. The
// matching release (step 4, on descriptor-pool occupancy) is
// Engine.maybeReleaseHTTP, run by the DATA sender fiber — the two
// directions watch different signals, per spec, so neither can oscillate
// against the other.
func (e *Engine) updateHTTPThrottle() {
	depth := e.queues[StreamData].Len()
	if depth < e.lockThreshold {
		return
	}
	e.mu.Lock()
	e.httpPermitted = false
	e.mu.Unlock()
	e.metrics.SetHTTPPermitted(false)
}

// FlushAll drains every queue into the pool, freeing descriptors and
// invoking their completion callbacks, per spec §4.9 step 5's flush
// response.
func (e *Engine) FlushAll() {
	for s := Stream(0); s < numStreams; s++ {
		q := e.queues[s]
		for {
			idx, ok := q.Dequeue()
			if !ok {
				break
			}
			d := e.descs.Get(idx)
			e.descs.Free(idx)
			if d.onComplete != nil {
				d.onComplete()
			}
		}
		e.metrics.SetQueueDepth(s, 0)
	}
	e.mu.Lock()
	e.httpPermitted = true
	e.mu.Unlock()
	e.metrics.SetHTTPPermitted(true)
}
