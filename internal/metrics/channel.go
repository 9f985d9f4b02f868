package metrics

import (
	"sync"
	"time"
)

// DataPoint is one observation of a completed RPC call. It is created by a
// worker immediately after the call returns, sent exactly once, and never
// mutated afterwards.
type DataPoint struct {
	Method       string        // RPC method name, e.g. "eth_getLogs"
	Duration     time.Duration // wall-clock time of the call
	ResponseSize uint64        // size of the response payload in bytes
}

// Channel is an unbounded multi-producer single-consumer queue of datapoints.
//
// Producers obtain independent [Sender] handles via [Channel.Sender]. Sends
// append to an in-memory queue and never block the caller; capacity is
// bounded only by memory. The single consumer calls [Channel.Recv], which
// blocks until a datapoint is available or every sender handle has been
// closed.
type Channel struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []DataPoint
	senders int
	// started is set once the first sender registers. End-of-stream means
	// "every sender that ever existed has closed", so a consumer that
	// starts before the producers simply waits.
	started bool
	// abandoned is set when the consumer gives up on the stream; later
	// sends are silently dropped.
	abandoned bool
}

// NewChannel creates an empty channel with no sender handles.
func NewChannel() *Channel {
	c := &Channel{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Sender registers a new producer and returns its handle. Every handle must
// eventually be closed or Recv will block forever.
func (c *Channel) Sender() *Sender {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.senders++
	c.started = true
	return &Sender{ch: c}
}

// Recv returns the next datapoint in queue order. It blocks while the queue
// is empty and the stream has not ended: either a sender handle remains open
// or no sender has registered yet. The second return value is false once the
// stream has ended and the queue is drained.
func (c *Channel) Recv() (DataPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.queue) == 0 && (c.senders > 0 || !c.started) && !c.abandoned {
		c.cond.Wait()
	}
	if len(c.queue) == 0 {
		return DataPoint{}, false
	}
	dp := c.queue[0]
	c.queue = c.queue[1:]
	return dp, true
}

// Abandon marks the receive side as gone. Queued datapoints are discarded and
// subsequent sends report a drop. Abandoning an already ended stream is a
// no-op.
func (c *Channel) Abandon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abandoned = true
	c.queue = nil
	c.cond.Broadcast()
}

// Sender is one producer's handle on a Channel. A Sender is safe for use by
// a single goroutine; producers that share a handle must coordinate
// externally, so each worker should hold its own.
type Sender struct {
	ch     *Channel
	closed bool
}

// Send enqueues a datapoint. It never blocks. The return value is false when
// the datapoint was dropped because the handle was closed or the consumer
// abandoned the stream; callers must treat that as metrics loss, not as a
// failure of the work being measured.
func (s *Sender) Send(dp DataPoint) bool {
	c := s.ch
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.closed || c.abandoned {
		return false
	}
	c.queue = append(c.queue, dp)
	c.cond.Signal()
	return true
}

// Close releases the handle. Once every handle on the channel is closed the
// consumer observes end-of-stream. Close is idempotent.
func (s *Sender) Close() {
	c := s.ch
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	c.senders--
	if c.senders == 0 {
		c.cond.Broadcast()
	}
}
