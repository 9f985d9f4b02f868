package metrics_test

import (
	"sync"
	"testing"
	"time"

	"github.com/coldcall/coldcall/internal/metrics"
)

func TestEmitterFeedsAggregatorAndCounters(t *testing.T) {
	ch := metrics.NewChannel()
	counters := metrics.NewCounters()
	counters.Start()

	done := make(chan metrics.ReportSet, 1)
	go func() {
		done <- metrics.Aggregate(ch)
	}()

	e := metrics.NewEmitter(ch, counters)
	e.Emit("eth_getLogs", 10*time.Millisecond, 100)
	e.Emit("eth_getLogs", 20*time.Millisecond, 200)
	e.Emit("eth_getBlockByNumber", 5*time.Millisecond, 50)
	e.Close()

	set := <-done
	if set["eth_getLogs"].Count != 2 {
		t.Errorf("expected 2 eth_getLogs observations, got %d", set["eth_getLogs"].Count)
	}

	snap := counters.Snapshot()
	if snap.Emitted != 3 {
		t.Errorf("expected 3 emitted, got %d", snap.Emitted)
	}
	if snap.Dropped != 0 {
		t.Errorf("expected 0 dropped, got %d", snap.Dropped)
	}
	if snap.Bytes != 350 {
		t.Errorf("expected 350 bytes, got %d", snap.Bytes)
	}
	if snap.ByMethod["eth_getLogs"] != 2 || snap.ByMethod["eth_getBlockByNumber"] != 1 {
		t.Errorf("unexpected per-method counts: %v", snap.ByMethod)
	}
}

func TestEmitterDropsAfterAbandon(t *testing.T) {
	ch := metrics.NewChannel()
	counters := metrics.NewCounters()
	ch.Abandon()

	e := metrics.NewEmitter(ch, counters)
	e.Emit("eth_getLogs", time.Millisecond, 10)
	e.Close()

	snap := counters.Snapshot()
	if snap.Emitted != 0 {
		t.Errorf("expected 0 emitted, got %d", snap.Emitted)
	}
	if snap.Dropped != 1 {
		t.Errorf("expected 1 dropped, got %d", snap.Dropped)
	}
}

func TestCountersConcurrentEmitters(t *testing.T) {
	ch := metrics.NewChannel()
	counters := metrics.NewCounters()

	done := make(chan metrics.ReportSet, 1)
	go func() {
		done <- metrics.Aggregate(ch)
	}()

	const workers = 10
	const perWorker = 100

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		e := metrics.NewEmitter(ch, counters)
		go func() {
			defer wg.Done()
			defer e.Close()
			for j := 0; j < perWorker; j++ {
				e.Emit("eth_getLogs", time.Millisecond, 1)
			}
		}()
	}
	wg.Wait()
	<-done

	snap := counters.Snapshot()
	if snap.Emitted != workers*perWorker {
		t.Errorf("expected %d emitted, got %d", workers*perWorker, snap.Emitted)
	}
}
