package metrics_test

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/coldcall/coldcall/internal/metrics"
)

func feed(t *testing.T, points []metrics.DataPoint) metrics.ReportSet {
	t.Helper()

	ch := metrics.NewChannel()
	s := ch.Sender()
	done := make(chan metrics.ReportSet, 1)
	go func() {
		done <- metrics.Aggregate(ch)
	}()
	for _, dp := range points {
		if !s.Send(dp) {
			t.Errorf("send of %+v reported a drop", dp)
		}
	}
	s.Close()
	return <-done
}

func TestAggregateExampleScenario(t *testing.T) {
	set := feed(t, []metrics.DataPoint{
		{Method: "eth_getLogs", ResponseSize: 100, Duration: 1_000_000_000},
		{Method: "eth_getLogs", ResponseSize: 300, Duration: 3_000_000_000},
		{Method: "eth_getLogs", ResponseSize: 200, Duration: 2_000_000_000},
	})

	if len(set) != 1 {
		t.Fatalf("expected 1 method, got %d", len(set))
	}
	report, ok := set["eth_getLogs"]
	if !ok {
		t.Fatal("missing report for eth_getLogs")
	}

	if report.Count != 3 {
		t.Errorf("expected count 3, got %d", report.Count)
	}
	if report.MaxSize != 300 {
		t.Errorf("expected max size 300, got %d", report.MaxSize)
	}
	if report.MinSize != 100 {
		t.Errorf("expected min size 100, got %d", report.MinSize)
	}
	if report.TotalSize != 600 {
		t.Errorf("expected total size 600, got %d", report.TotalSize)
	}
	if report.AvgSize != 200 {
		t.Errorf("expected avg size 200, got %d", report.AvgSize)
	}
	if report.MaxTime != 3*time.Second {
		t.Errorf("expected max time 3s, got %s", report.MaxTime)
	}
	if report.MinTime != time.Second {
		t.Errorf("expected min time 1s, got %s", report.MinTime)
	}
	if report.AvgTime != 2*time.Second {
		t.Errorf("expected avg time 2s, got %s", report.AvgTime)
	}
	if report.TotalDuration != 6*time.Second {
		t.Errorf("expected total duration 6s, got %s", report.TotalDuration)
	}
}

func TestAggregateSingleObservation(t *testing.T) {
	set := feed(t, []metrics.DataPoint{
		{Method: "a", ResponseSize: 10, Duration: 5},
		{Method: "b", ResponseSize: 20, Duration: 7},
	})

	if len(set) != 2 {
		t.Fatalf("expected 2 methods, got %d", len(set))
	}

	a := set["a"]
	if a.MinSize != 10 || a.MaxSize != 10 || a.AvgSize != 10 || a.TotalSize != 10 {
		t.Errorf("method a sizes: min=%d max=%d avg=%d total=%d, want all 10",
			a.MinSize, a.MaxSize, a.AvgSize, a.TotalSize)
	}
	if a.MinTime != 5 || a.MaxTime != 5 || a.AvgTime != 5 || a.TotalDuration != 5 {
		t.Errorf("method a times: min=%d max=%d avg=%d total=%d, want all 5",
			a.MinTime, a.MaxTime, a.AvgTime, a.TotalDuration)
	}

	b := set["b"]
	if b.MinSize != 20 || b.MaxSize != 20 || b.TotalSize != 20 {
		t.Errorf("method b sizes leaked across methods: %+v", b)
	}
	if b.MinTime != 7 || b.MaxTime != 7 || b.TotalDuration != 7 {
		t.Errorf("method b times leaked across methods: %+v", b)
	}
}

func TestAggregateAvgFloorDivision(t *testing.T) {
	set := feed(t, []metrics.DataPoint{
		{Method: "eth_getBlockByNumber", ResponseSize: 1, Duration: 1},
		{Method: "eth_getBlockByNumber", ResponseSize: 2, Duration: 2},
	})

	report := set["eth_getBlockByNumber"]
	if report.AvgSize != 1 {
		t.Errorf("expected floor(3/2)=1, got %d", report.AvgSize)
	}
	if report.AvgTime != 1 {
		t.Errorf("expected floor(3ns/2)=1ns, got %d", report.AvgTime)
	}
}

func TestAggregateEmptyStream(t *testing.T) {
	set := feed(t, nil)
	if len(set) != 0 {
		t.Errorf("expected empty report set, got %d entries", len(set))
	}
}

func TestAggregateCommutative(t *testing.T) {
	points := []metrics.DataPoint{
		{Method: "eth_getLogs", ResponseSize: 512, Duration: 40 * time.Millisecond},
		{Method: "eth_getLogs", ResponseSize: 2048, Duration: 4 * time.Millisecond},
		{Method: "eth_getBlockByNumber", ResponseSize: 96, Duration: 9 * time.Millisecond},
		{Method: "eth_getLogs", ResponseSize: 1, Duration: 100 * time.Millisecond},
		{Method: "eth_getBlockByNumber", ResponseSize: 4096, Duration: 1 * time.Millisecond},
		{Method: "eth_getTransactionReceipt", ResponseSize: 777, Duration: 3 * time.Millisecond},
	}

	baseline := feed(t, points)

	rnd := rand.New(rand.NewSource(1))
	for trial := 0; trial < 10; trial++ {
		shuffled := make([]metrics.DataPoint, len(points))
		copy(shuffled, points)
		rnd.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		set := feed(t, shuffled)
		if len(set) != len(baseline) {
			t.Fatalf("trial %d: expected %d methods, got %d", trial, len(baseline), len(set))
		}
		for method, want := range baseline {
			got := set[method]
			if got != want {
				t.Errorf("trial %d: %s: got %+v, want %+v", trial, method, got, want)
			}
		}
	}
}

func TestAggregateInvariants(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	points := make([]metrics.DataPoint, 500)
	for i := range points {
		points[i] = metrics.DataPoint{
			Method:       "eth_getLogs",
			ResponseSize: uint64(rnd.Intn(1 << 20)),
			Duration:     time.Duration(rnd.Intn(int(time.Second))),
		}
	}

	report := feed(t, points)["eth_getLogs"]

	var totalSize uint64
	var totalTime time.Duration
	maxSize, minSize := uint64(0), uint64(1<<63)
	for _, dp := range points {
		totalSize += dp.ResponseSize
		totalTime += dp.Duration
		if dp.ResponseSize > maxSize {
			maxSize = dp.ResponseSize
		}
		if dp.ResponseSize < minSize {
			minSize = dp.ResponseSize
		}
	}

	if report.TotalSize != totalSize {
		t.Errorf("total size: got %d, want %d", report.TotalSize, totalSize)
	}
	if report.TotalDuration != totalTime {
		t.Errorf("total duration: got %d, want %d", report.TotalDuration, totalTime)
	}
	if report.MaxSize != maxSize || report.MinSize != minSize {
		t.Errorf("size extremes: got [%d,%d], want [%d,%d]",
			report.MinSize, report.MaxSize, minSize, maxSize)
	}
	if report.AvgSize != totalSize/uint64(len(points)) {
		t.Errorf("avg size: got %d, want %d", report.AvgSize, totalSize/uint64(len(points)))
	}
	if report.MinSize > report.AvgSize || report.AvgSize > report.MaxSize {
		t.Errorf("size ordering violated: min=%d avg=%d max=%d",
			report.MinSize, report.AvgSize, report.MaxSize)
	}
	if report.MinTime > report.AvgTime || report.AvgTime > report.MaxTime {
		t.Errorf("time ordering violated: min=%s avg=%s max=%s",
			report.MinTime, report.AvgTime, report.MaxTime)
	}
}

func TestAggregateConcurrentProducers(t *testing.T) {
	const producers = 16
	const perProducer = 250

	ch := metrics.NewChannel()
	done := make(chan metrics.ReportSet, 1)
	go func() {
		done <- metrics.Aggregate(ch)
	}()

	var wg sync.WaitGroup
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		s := ch.Sender()
		go func() {
			defer wg.Done()
			defer s.Close()
			for j := 0; j < perProducer; j++ {
				s.Send(metrics.DataPoint{
					Method:       "eth_getBlockByNumber",
					ResponseSize: 3,
					Duration:     time.Microsecond,
				})
			}
		}()
	}
	wg.Wait()

	set := <-done
	report := set["eth_getBlockByNumber"]
	if report.Count != producers*perProducer {
		t.Errorf("expected %d observations, got %d", producers*perProducer, report.Count)
	}
	if report.TotalSize != 3*producers*perProducer {
		t.Errorf("expected total size %d, got %d", 3*producers*perProducer, report.TotalSize)
	}
	if report.TotalDuration != producers*perProducer*time.Microsecond {
		t.Errorf("expected total duration %s, got %s",
			producers*perProducer*time.Microsecond, report.TotalDuration)
	}
}

func TestAggregatePercentiles(t *testing.T) {
	points := make([]metrics.DataPoint, 0, 100)
	for i := 1; i <= 100; i++ {
		points = append(points, metrics.DataPoint{
			Method:   "eth_getLogs",
			Duration: time.Duration(i) * time.Millisecond,
		})
	}

	report := feed(t, points)["eth_getLogs"]

	if report.P50Time < 49*time.Millisecond || report.P50Time > 51*time.Millisecond {
		t.Errorf("expected P50 ~50ms, got %s", report.P50Time)
	}
	if report.P90Time < 89*time.Millisecond || report.P90Time > 91*time.Millisecond {
		t.Errorf("expected P90 ~90ms, got %s", report.P90Time)
	}
	if report.P99Time < 98*time.Millisecond || report.P99Time > 100*time.Millisecond {
		t.Errorf("expected P99 ~99ms, got %s", report.P99Time)
	}
}
