// Package metrics provides streaming per-method metrics aggregation for
// extraction runs.
//
// Worker goroutines emit one [DataPoint] per completed RPC call into an
// unbounded [Channel]. A single aggregator drains the channel and folds the
// datapoints into one [MethodReport] per RPC method.
//
// # Channel
//
// The channel is an explicit multi-producer single-consumer queue. Sends
// never block and never fail because of backlog; each producer holds its own
// [Sender] handle and the stream ends once every handle has been closed:
//
//	ch := metrics.NewChannel()
//	s := ch.Sender()
//	go func() {
//		defer s.Close()
//		s.Send(metrics.DataPoint{Method: "eth_getLogs", Duration: d, ResponseSize: n})
//	}()
//
// If the receive side has already gone away, Send reports the drop and the
// datapoint is discarded. Metrics loss is acceptable; stalling a worker over
// a metrics concern is not.
//
// # Aggregation
//
// [Aggregate] blocks until the stream ends and returns the completed
// [ReportSet]:
//
//	set := metrics.Aggregate(ch)
//	report := set["eth_getLogs"]
//
// Aggregation is a commutative fold (max/min/sum), so any interleaving of
// concurrent producers yields the same result. All totals and averages use
// integer arithmetic; averages are floor divisions.
//
// # Live counters
//
// [Counters] tracks emitted datapoint and byte totals for progress display.
// It is fed on the emit path so the aggregator's state stays private to the
// aggregation goroutine.
package metrics
