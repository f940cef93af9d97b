package streaming

import "time"

// senderTickInterval mirrors the original firmware's `delay(1)` sender
// idle loop (spec §5): one scheduler tick between passes.
const senderTickInterval = time.Millisecond

// RunSender drives one stream's sender fiber until stop is closed. It
// should be started once per stream (four goroutines total) by the
// daemon's wiring code.
func (e *Engine) RunSender(stream Stream, stop <-chan struct{}) {
	ticker := time.NewTicker(senderTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.senderTick(stream)
		}
	}
}

// senderTick walks the marker cursor, delivering the stream's send-type
// view of each outstanding descriptor to every connection subscribed to
// it, per spec §4.9's sender-fiber algorithm. A descriptor advances past
// the marker only once every connection's delivered bit is set; final
// removal is left to the opportunistic GC in Send's next call.
func (e *Engine) senderTick(stream Stream) {
	q := e.queues[stream]
	q.BeginMarkerWalk()
	defer q.EndMarkerWalk()

	conns := e.conns.Active()
	activeIDs := make(map[int]bool, len(conns))
	for _, c := range conns {
		activeIDs[c.ID()] = true
	}

	for {
		idx, ok := q.MarkerFront()
		if !ok {
			return
		}
		d := e.descs.Get(idx)
		st := stream.sendType()

		for _, c := range conns {
			cid := c.ID()
			if cid < 0 || cid >= MaxConnections || d.delivered[cid] {
				continue
			}
			if c.SendMask()&byte(st) == 0 {
				d.delivered[cid] = true
				continue
			}
			var view []byte
			if c.IsWebSocket() {
				view = d.frame.WSView(st)
			} else {
				view = d.frame.TCPView(st)
			}
			if c.Write(view) {
				d.delivered[cid] = true
			}
		}
		// Connections that disconnected since this descriptor was
		// enqueued can never receive it; treat their slot as
		// satisfied so the descriptor isn't held hostage forever.
		for cid := 0; cid < MaxConnections; cid++ {
			if !activeIDs[cid] {
				d.delivered[cid] = true
			}
		}

		if !allDelivered(d) {
			return
		}
		q.MarkerDequeue()
		if stream == StreamData {
			e.maybeReleaseHTTP()
		}
	}
}

// maybeReleaseHTTP implements spec §4.9 step 4: the DATA fiber releases
// http_permitted once descriptor-pool occupancy falls below
// release_http_threshold.
func (e *Engine) maybeReleaseHTTP() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.descs.Used() < e.releaseThreshold {
		e.httpPermitted = true
		e.metrics.SetHTTPPermitted(true)
	}
}
