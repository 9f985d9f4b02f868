package metrics

import (
	"sync"
	"time"
)

// Counters tracks run-wide emission totals for live progress display. It is
// updated on the emit path, outside the aggregator, so the aggregator's
// accumulator map never needs external synchronization.
type Counters struct {
	mu       sync.Mutex
	start    time.Time
	emitted  int64
	dropped  int64
	bytes    uint64
	byMethod map[string]int64
}

// NewCounters creates zeroed counters.
func NewCounters() *Counters {
	return &Counters{byMethod: make(map[string]int64)}
}

// Start marks the beginning of the run for rate calculation.
func (c *Counters) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
}

func (c *Counters) recordEmit(dp DataPoint, sent bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !sent {
		c.dropped++
		return
	}
	c.emitted++
	c.bytes += dp.ResponseSize
	c.byMethod[dp.Method]++
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Elapsed     time.Duration
	Emitted     int64
	Dropped     int64
	Bytes       uint64
	CallsPerSec float64
	ByMethod    map[string]int64
}

// Snapshot returns a consistent copy of all counters.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Emitted:  c.emitted,
		Dropped:  c.dropped,
		Bytes:    c.bytes,
		ByMethod: make(map[string]int64, len(c.byMethod)),
	}
	for method, n := range c.byMethod {
		snap.ByMethod[method] = n
	}
	if !c.start.IsZero() {
		snap.Elapsed = time.Since(c.start)
		if secs := snap.Elapsed.Seconds(); secs > 0 && c.emitted > 0 {
			snap.CallsPerSec = float64(c.emitted) / secs
		}
	}
	return snap
}

// Emitter is the fire-and-forget surface workers use to report completed
// calls. Each worker holds its own Emitter; the underlying sender handle is
// not safe for concurrent use.
type Emitter struct {
	sender   *Sender
	counters *Counters
}

// NewEmitter registers a new sender handle on ch. counters may be nil when
// no live display is attached.
func NewEmitter(ch *Channel, counters *Counters) *Emitter {
	return &Emitter{sender: ch.Sender(), counters: counters}
}

// Emit sends one datapoint. It never blocks and never fails: if the
// aggregator has already gone away the datapoint is counted as dropped and
// the caller proceeds unaffected.
func (e *Emitter) Emit(method string, duration time.Duration, responseSize uint64) {
	dp := DataPoint{Method: method, Duration: duration, ResponseSize: responseSize}
	sent := e.sender.Send(dp)
	if e.counters != nil {
		e.counters.recordEmit(dp, sent)
	}
}

// Close releases the sender handle. The aggregation run completes once every
// emitter has been closed.
func (e *Emitter) Close() {
	e.sender.Close()
}
