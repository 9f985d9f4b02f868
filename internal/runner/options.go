package runner

import (
	"context"
	"encoding/json"

	"github.com/coldcall/coldcall/internal/chunk"
	"github.com/coldcall/coldcall/internal/metrics"
	"github.com/coldcall/coldcall/internal/rpc"
)

// Fetcher issues a single JSON-RPC call and returns the raw result.
// *rpc.Client satisfies this interface.
type Fetcher interface {
	Call(ctx context.Context, method string, params any) (rpc.Result, error)
}

// Sink receives extracted rows. Implementations must be safe for
// concurrent use; the runner writes from every worker.
type Sink interface {
	Write(dataset string, row json.RawMessage) error
}

// Options configures a run.
type Options struct {
	// Workers is the size of the extraction pool. Values below 1 are
	// normalized to 1.
	Workers int

	// Chunks are the block ranges to extract, in the order they should
	// be dispatched.
	Chunks []chunk.Range

	// Datasets to extract from each chunk.
	Datasets []Dataset

	// Fetcher performs the JSON-RPC calls.
	Fetcher Fetcher

	// Channel receives one datapoint per successful call. A fresh
	// channel is created when nil so the runner can be used without a
	// consumer.
	Channel *metrics.Channel

	// Counters, when set, is updated on every emitted datapoint for
	// live progress reporting.
	Counters *metrics.Counters

	// Sink, when set, receives the raw result of every successful
	// call.
	Sink Sink
}

func (o *Options) normalize() {
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Channel == nil {
		o.Channel = metrics.NewChannel()
	}
}
