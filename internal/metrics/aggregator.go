package metrics

import (
	"math"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// MethodReport is the aggregated summary for one RPC method. All totals are
// exact integer sums; averages use floor division by the observation count.
type MethodReport struct {
	Count uint64 `json:"count"`

	MaxSize   uint64 `json:"max_size"`
	MinSize   uint64 `json:"min_size"`
	AvgSize   uint64 `json:"avg_size"`
	TotalSize uint64 `json:"total_size"`

	MaxTime       time.Duration `json:"max_time_ns"`
	MinTime       time.Duration `json:"min_time_ns"`
	AvgTime       time.Duration `json:"avg_time_ns"`
	TotalDuration time.Duration `json:"total_duration_ns"`

	// Percentile latencies from an HDR histogram, accurate to three
	// significant figures.
	P50Time time.Duration `json:"p50_time_ns"`
	P90Time time.Duration `json:"p90_time_ns"`
	P99Time time.Duration `json:"p99_time_ns"`
}

// ReportSet maps each RPC method observed at least once to its report. A
// fresh set is built per aggregation run and never mutated after return.
type ReportSet map[string]MethodReport

// accumulator is the running per-method fold state. Minima are seeded at the
// maximum representable value, which is sound only because accumulators are
// created lazily on first observation.
type accumulator struct {
	count     uint64
	maxSize   uint64
	minSize   uint64
	totalSize uint64
	maxTime   time.Duration
	minTime   time.Duration
	totalTime time.Duration
	hist      *hdrhistogram.Histogram
}

func newAccumulator() *accumulator {
	// Track call latencies from 1µs up to 60s with 3 significant figures.
	return &accumulator{
		minSize: math.MaxUint64,
		minTime: time.Duration(math.MaxInt64),
		hist:    hdrhistogram.New(1, 60_000_000, 3),
	}
}

func (a *accumulator) observe(dp DataPoint) {
	a.count++

	if dp.ResponseSize > a.maxSize {
		a.maxSize = dp.ResponseSize
	}
	if dp.ResponseSize < a.minSize {
		a.minSize = dp.ResponseSize
	}
	a.totalSize += dp.ResponseSize

	if dp.Duration > a.maxTime {
		a.maxTime = dp.Duration
	}
	if dp.Duration < a.minTime {
		a.minTime = dp.Duration
	}
	a.totalTime += dp.Duration

	us := dp.Duration.Microseconds()
	if us < a.hist.LowestTrackableValue() {
		us = a.hist.LowestTrackableValue()
	}
	if us > a.hist.HighestTrackableValue() {
		us = a.hist.HighestTrackableValue()
	}
	_ = a.hist.RecordValue(us)
}

// report finalizes the accumulator. count is at least 1 for every
// accumulator that exists, so the divisions cannot fault.
func (a *accumulator) report() MethodReport {
	return MethodReport{
		Count:         a.count,
		MaxSize:       a.maxSize,
		MinSize:       a.minSize,
		AvgSize:       a.totalSize / a.count,
		TotalSize:     a.totalSize,
		MaxTime:       a.maxTime,
		MinTime:       a.minTime,
		AvgTime:       a.totalTime / time.Duration(a.count),
		TotalDuration: a.totalTime,
		P50Time:       time.Duration(a.hist.ValueAtQuantile(50)) * time.Microsecond,
		P90Time:       time.Duration(a.hist.ValueAtQuantile(90)) * time.Microsecond,
		P99Time:       time.Duration(a.hist.ValueAtQuantile(99)) * time.Microsecond,
	}
}

// Aggregate drains ch until every sender handle has been closed and returns
// one report per method observed. An empty stream yields an empty set.
// Aggregate performs no I/O and cannot fail; it is the channel's single
// consumer and owns all accumulator state for the duration of the run.
func Aggregate(ch *Channel) ReportSet {
	accs := make(map[string]*accumulator)
	for {
		dp, ok := ch.Recv()
		if !ok {
			break
		}
		acc := accs[dp.Method]
		if acc == nil {
			acc = newAccumulator()
			accs[dp.Method] = acc
		}
		acc.observe(dp)
	}

	set := make(ReportSet, len(accs))
	for method, acc := range accs {
		set[method] = acc.report()
	}
	return set
}
