package output

import (
	"fmt"
	"io"
	"sort"
	"sync/atomic"
	"time"

	"github.com/coldcall/coldcall/internal/metrics"
)

// ProgressReporter displays real-time extraction progress.
type ProgressReporter struct {
	counters *metrics.Counters
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(counters *metrics.Counters, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		counters: counters,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, progressLine(p.counters.Snapshot()))
		case <-p.done:
			return
		}
	}
}

func progressLine(snap metrics.Snapshot) string {
	line := fmt.Sprintf("\rCalls: %d | Data: %s | Calls/sec: %.1f",
		snap.Emitted, formatBytes(snap.Bytes), snap.CallsPerSec)
	if snap.Dropped > 0 {
		line += fmt.Sprintf(" | Dropped: %d", snap.Dropped)
	}
	if name, n, ok := topMethod(snap); ok && snap.Emitted > 0 {
		share := (float64(n) / float64(snap.Emitted)) * 100
		line += fmt.Sprintf(" | Top Method: %s (%.0f%%)", name, share)
	}
	return line
}

func topMethod(snap metrics.Snapshot) (string, int64, bool) {
	if len(snap.ByMethod) == 0 {
		return "", 0, false
	}
	names := make([]string, 0, len(snap.ByMethod))
	for name := range snap.ByMethod {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return snap.ByMethod[names[i]] > snap.ByMethod[names[j]]
	})
	return names[0], snap.ByMethod[names[0]], true
}
