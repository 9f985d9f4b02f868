package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coldcall/coldcall/internal/chunk"
	"github.com/coldcall/coldcall/internal/metrics"
)

// Result summarizes a completed run.
type Result struct {
	// Calls is the number of JSON-RPC calls attempted.
	Calls int64
	// Errors is the number of calls that failed, plus sink write
	// failures.
	Errors int64
	// Duration is the wall-clock time of the run.
	Duration time.Duration
}

// Runner executes an extraction run.
type Runner struct {
	opt Options
}

// New builds a runner from opt. Options are normalized; the zero value
// of every optional field is usable.
func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt}
}

// Run dispatches every chunk to the worker pool and blocks until all
// workers have drained or ctx is cancelled. All metric senders opened
// by the run are closed before Run returns, so a consumer draining the
// channel sees end of stream.
func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	if r.opt.Fetcher == nil || len(r.opt.Datasets) == 0 {
		return Result{Duration: time.Since(start)}
	}

	var calls, errs int64
	chunks := make(chan chunk.Range)
	go func() {
		defer close(chunks)
		for _, c := range r.opt.Chunks {
			select {
			case chunks <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(r.opt.Workers)
	for i := 0; i < r.opt.Workers; i++ {
		go func() {
			defer wg.Done()
			emitter := metrics.NewEmitter(r.opt.Channel, r.opt.Counters)
			defer emitter.Close()
			for c := range chunks {
				r.extract(ctx, c, emitter, &calls, &errs)
				if ctx.Err() != nil {
					return
				}
			}
		}()
	}
	wg.Wait()

	return Result{
		Calls:    atomic.LoadInt64(&calls),
		Errors:   atomic.LoadInt64(&errs),
		Duration: time.Since(start),
	}
}

func (r *Runner) extract(ctx context.Context, c chunk.Range, emitter *metrics.Emitter, calls, errs *int64) {
	for _, ds := range r.opt.Datasets {
		for _, call := range ds.Calls(c) {
			if ctx.Err() != nil {
				return
			}
			began := time.Now()
			res, err := r.opt.Fetcher.Call(ctx, call.Method, call.Params)
			elapsed := time.Since(began)
			atomic.AddInt64(calls, 1)
			if err != nil {
				atomic.AddInt64(errs, 1)
				continue
			}
			emitter.Emit(call.Method, elapsed, res.Size)
			if r.opt.Sink != nil {
				if err := r.opt.Sink.Write(ds.Name, res.Raw); err != nil {
					atomic.AddInt64(errs, 1)
				}
			}
		}
	}
}
