package runner_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coldcall/coldcall/internal/chunk"
	"github.com/coldcall/coldcall/internal/metrics"
	"github.com/coldcall/coldcall/internal/rpc"
	"github.com/coldcall/coldcall/internal/runner"
)

type stubFetcher struct {
	mu      sync.Mutex
	methods []string
	fail    func(method string) error
}

func (s *stubFetcher) Call(ctx context.Context, method string, params any) (rpc.Result, error) {
	s.mu.Lock()
	s.methods = append(s.methods, method)
	s.mu.Unlock()
	if s.fail != nil {
		if err := s.fail(method); err != nil {
			return rpc.Result{}, err
		}
	}
	raw := json.RawMessage(`{"number":"0x1"}`)
	return rpc.Result{Raw: raw, Size: uint64(len(raw))}, nil
}

func (s *stubFetcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.methods)
}

type memorySink struct {
	mu   sync.Mutex
	rows map[string]int
	err  error
}

func (m *memorySink) Write(dataset string, row json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.rows == nil {
		m.rows = map[string]int{}
	}
	m.rows[dataset]++
	return nil
}

func mustDatasets(t *testing.T, names ...string) []runner.Dataset {
	t.Helper()
	ds, err := runner.Datasets(names)
	if err != nil {
		t.Fatalf("Datasets: %v", err)
	}
	return ds
}

func TestRunExtractsEveryChunk(t *testing.T) {
	ch := metrics.NewChannel()
	stub := &stubFetcher{}
	sink := &memorySink{}
	r := runner.New(runner.Options{
		Workers:  4,
		Chunks:   []chunk.Range{{Start: 0, End: 9}, {Start: 10, End: 19}, {Start: 20, End: 24}},
		Datasets: mustDatasets(t, "blocks", "logs"),
		Fetcher:  stub,
		Channel:  ch,
		Sink:     sink,
	})

	done := make(chan metrics.ReportSet, 1)
	go func() { done <- metrics.Aggregate(ch) }()

	res := r.Run(context.Background())
	set := <-done

	// 25 blocks plus one logs call per chunk.
	if res.Calls != 28 {
		t.Errorf("Calls = %d, want 28", res.Calls)
	}
	if res.Errors != 0 {
		t.Errorf("Errors = %d, want 0", res.Errors)
	}
	if got := set["eth_getBlockByNumber"].Count; got != 25 {
		t.Errorf("block datapoints = %d, want 25", got)
	}
	if got := set["eth_getLogs"].Count; got != 3 {
		t.Errorf("logs datapoints = %d, want 3", got)
	}
	if sink.rows["blocks"] != 25 || sink.rows["logs"] != 3 {
		t.Errorf("sink rows = %v, want 25 blocks and 3 logs", sink.rows)
	}
}

func TestRunCountsFailuresWithoutEmitting(t *testing.T) {
	ch := metrics.NewChannel()
	stub := &stubFetcher{fail: func(method string) error {
		if method == "eth_getLogs" {
			return errors.New("timeout")
		}
		return nil
	}}
	r := runner.New(runner.Options{
		Workers:  2,
		Chunks:   []chunk.Range{{Start: 0, End: 4}},
		Datasets: mustDatasets(t, "blocks", "logs"),
		Fetcher:  stub,
		Channel:  ch,
	})

	done := make(chan metrics.ReportSet, 1)
	go func() { done <- metrics.Aggregate(ch) }()

	res := r.Run(context.Background())
	set := <-done

	if res.Calls != 6 || res.Errors != 1 {
		t.Errorf("Calls, Errors = %d, %d, want 6, 1", res.Calls, res.Errors)
	}
	if _, ok := set["eth_getLogs"]; ok {
		t.Error("failed calls must not produce datapoints")
	}
	if got := set["eth_getBlockByNumber"].Count; got != 5 {
		t.Errorf("block datapoints = %d, want 5", got)
	}
}

func TestRunSinkWriteFailureCountsAsError(t *testing.T) {
	ch := metrics.NewChannel()
	go metrics.Aggregate(ch)
	r := runner.New(runner.Options{
		Workers:  1,
		Chunks:   []chunk.Range{{Start: 1, End: 1}},
		Datasets: mustDatasets(t, "blocks"),
		Fetcher:  &stubFetcher{},
		Channel:  ch,
		Sink:     &memorySink{err: errors.New("disk full")},
	})

	res := r.Run(context.Background())
	if res.Calls != 1 || res.Errors != 1 {
		t.Errorf("Calls, Errors = %d, %d, want 1, 1", res.Calls, res.Errors)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stub := &stubFetcher{fail: func(string) error {
		cancel()
		return nil
	}}
	ch := metrics.NewChannel()
	go metrics.Aggregate(ch)

	chunks := make([]chunk.Range, 100)
	for i := range chunks {
		n := uint64(i * 10)
		chunks[i] = chunk.Range{Start: n, End: n + 9}
	}
	r := runner.New(runner.Options{
		Workers:  1,
		Chunks:   chunks,
		Datasets: mustDatasets(t, "blocks"),
		Fetcher:  stub,
		Channel:  ch,
	})

	res := r.Run(ctx)
	if res.Calls >= 1000 {
		t.Errorf("Calls = %d, want an early stop", res.Calls)
	}
}

func TestRunWithoutFetcherIsANoOp(t *testing.T) {
	r := runner.New(runner.Options{
		Chunks:   []chunk.Range{{Start: 0, End: 9}},
		Datasets: mustDatasets(t, "blocks"),
	})
	res := r.Run(context.Background())
	if res.Calls != 0 || res.Errors != 0 {
		t.Errorf("Calls, Errors = %d, %d, want 0, 0", res.Calls, res.Errors)
	}
}

func TestRunClosesSendersForConsumer(t *testing.T) {
	ch := metrics.NewChannel()
	r := runner.New(runner.Options{
		Workers:  3,
		Chunks:   []chunk.Range{{Start: 0, End: 2}},
		Datasets: mustDatasets(t, "blocks"),
		Fetcher:  &stubFetcher{},
		Channel:  ch,
	})

	done := make(chan metrics.ReportSet, 1)
	go func() { done <- metrics.Aggregate(ch) }()
	r.Run(context.Background())

	select {
	case set := <-done:
		if got := set["eth_getBlockByNumber"].Count; got != 3 {
			t.Errorf("datapoints = %d, want 3", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("aggregator never saw end of stream")
	}
}

func TestRunUpdatesCounters(t *testing.T) {
	ch := metrics.NewChannel()
	go metrics.Aggregate(ch)
	counters := metrics.NewCounters()
	counters.Start()

	r := runner.New(runner.Options{
		Workers:  2,
		Chunks:   []chunk.Range{{Start: 0, End: 9}},
		Datasets: mustDatasets(t, "blocks"),
		Fetcher:  &stubFetcher{},
		Channel:  ch,
		Counters: counters,
	})
	r.Run(context.Background())

	snap := counters.Snapshot()
	if snap.Emitted != 10 {
		t.Errorf("Emitted = %d, want 10", snap.Emitted)
	}
	if snap.Bytes == 0 {
		t.Error("expected nonzero byte count")
	}
}

func TestRunMethodsAreWellFormed(t *testing.T) {
	ch := metrics.NewChannel()
	go metrics.Aggregate(ch)
	stub := &stubFetcher{}
	r := runner.New(runner.Options{
		Workers:  1,
		Chunks:   []chunk.Range{{Start: 0, End: 1}},
		Datasets: mustDatasets(t, "transactions"),
		Fetcher:  stub,
		Channel:  ch,
	})
	r.Run(context.Background())

	if stub.callCount() != 2 {
		t.Fatalf("calls = %d, want 2", stub.callCount())
	}
	for _, m := range stub.methods {
		if !strings.HasPrefix(m, "eth_") {
			t.Errorf("unexpected method %q", m)
		}
	}
}
