// Package runner drives concurrent dataset extraction over a JSON-RPC
// endpoint.
//
// A run is defined by a set of block ranges (see package chunk) and one
// or more datasets. Each dataset expands a block range into the JSON-RPC
// calls needed to extract it; the runner distributes ranges across a
// fixed pool of workers, each of which issues the calls through a
// Fetcher and emits one metrics datapoint per successful call.
//
//	r := runner.New(runner.Options{
//		Workers:  8,
//		Chunks:   chunks,
//		Datasets: datasets,
//		Fetcher:  client,
//		Channel:  ch,
//	})
//	res := r.Run(ctx)
//
// Fetchers can be decorated with WithRetry and WithLogging, keeping the
// retry policy and failure reporting out of the transport layer.
package runner
