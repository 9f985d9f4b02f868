package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coldcall/coldcall/internal/chunk"
	"github.com/coldcall/coldcall/internal/config"
	"github.com/coldcall/coldcall/internal/dashboard"
	"github.com/coldcall/coldcall/internal/metrics"
	"github.com/coldcall/coldcall/internal/output"
	"github.com/coldcall/coldcall/internal/rpc"
	"github.com/coldcall/coldcall/internal/runner"
	"github.com/coldcall/coldcall/internal/tracing"
)

const (
	progressInterval = time.Second
	baseRetryDelay   = 100 * time.Millisecond
	maxRetryDelay    = 5 * time.Second
)

type stderrFailureLogger struct {
	mu sync.Mutex
}

type jitterSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	transport, err := newTransport(cfg, provider.ShouldPropagate())
	if err != nil {
		return err
	}
	client := rpc.NewClient(rpc.Options{
		Transport:     transport,
		RatePerSecond: cfg.Rate,
		Tracer:        provider.Tracer(),
	})
	defer client.Close()

	chunks, err := chunk.Split(chunk.Range{Start: cfg.StartBlock, End: cfg.EndBlock}, cfg.ChunkSize)
	if err != nil {
		return err
	}
	datasets, err := runner.Datasets(cfg.Datasets)
	if err != nil {
		return err
	}

	var fetcher runner.Fetcher = client
	if cfg.LogErrors {
		fetcher = runner.WithLogging(fetcher, &stderrFailureLogger{})
	}
	if cfg.Retries > 0 {
		fetcher = runner.WithRetry(fetcher, newRetryPolicy(cfg.Retries))
	}

	ch := metrics.NewChannel()
	counters := metrics.NewCounters()

	var sink *output.Sink
	opts := runner.Options{
		Workers:  cfg.Workers,
		Chunks:   chunks,
		Datasets: datasets,
		Fetcher:  fetcher,
		Channel:  ch,
		Counters: counters,
	}
	if cfg.OutputDir != "" {
		sink, err = output.NewSink(cfg.OutputDir)
		if err != nil {
			return err
		}
		defer sink.Close()
		opts.Sink = sink
	}

	r := runner.New(opts)

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(counters, dashboard.RunConfig{
			TargetURL:  cfg.TargetURL,
			Transport:  string(cfg.Transport),
			Datasets:   cfg.Datasets,
			Workers:    cfg.Workers,
			Rate:       cfg.Rate,
			Timeout:    cfg.Timeout,
			Retries:    cfg.Retries,
			TotalCalls: plannedCalls(datasets, chunks),
			ConfigFile: cfg.ConfigFile,
		}, cancel)
		if err != nil {
			return err
		}
		dash.Start()
	}

	var progress *output.ProgressReporter
	if !cfg.JSONOutput && !cfg.Dashboard {
		progress = output.NewProgressReporter(counters, progressInterval, os.Stdout)
		progress.Start()
		defer progress.Stop()
	}

	reports := make(chan metrics.ReportSet, 1)
	go func() {
		reports <- metrics.Aggregate(ch)
	}()

	counters.Start()
	result := r.Run(ctx)
	set := <-reports

	if dash != nil {
		dash.Stop()
	}
	if progress != nil {
		progress.Stop()
		fmt.Fprintln(os.Stdout)
	}

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(os.Stdout, set); err != nil {
			return err
		}
	} else {
		output.PrintReport(os.Stdout, set)
	}

	if cfg.HTMLReport != "" {
		if err := writeHTMLReport(cfg, set, result); err != nil {
			return err
		}
	}

	if result.Errors > 0 {
		return fmt.Errorf("%d calls failed", result.Errors)
	}
	return nil
}

func newTransport(cfg *config.Config, propagate bool) (rpc.Transport, error) {
	headers := make(http.Header, len(cfg.Headers))
	for key, val := range cfg.Headers {
		headers.Set(key, val)
	}

	switch cfg.Transport {
	case config.TransportHTTP:
		return rpc.NewHTTPTransport(rpc.HTTPConfig{
			URL:       cfg.TargetURL,
			Headers:   headers,
			Timeout:   cfg.Timeout,
			Propagate: propagate,
		}), nil
	case config.TransportWebSocket:
		return rpc.NewWebSocketTransport(rpc.WebSocketConfig{
			URL:              cfg.TargetURL,
			Headers:          headers,
			HandshakeTimeout: cfg.WebSocket.HandshakeTimeout,
			ReadTimeout:      cfg.WebSocket.ReadTimeout,
			WriteTimeout:     cfg.WebSocket.WriteTimeout,
			PoolSize:         cfg.Workers,
		}), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// plannedCalls counts the calls the run will issue, for progress display.
func plannedCalls(datasets []runner.Dataset, chunks []chunk.Range) int64 {
	var total int64
	for _, c := range chunks {
		for _, ds := range datasets {
			total += int64(len(ds.Calls(c)))
		}
	}
	return total
}

func writeHTMLReport(cfg *config.Config, set metrics.ReportSet, result runner.Result) error {
	f, err := os.Create(cfg.HTMLReport)
	if err != nil {
		return fmt.Errorf("create html report: %w", err)
	}
	defer f.Close()

	return output.GenerateHTMLReport(f, set, output.RunSummary{
		Target:   cfg.TargetURL,
		Calls:    result.Calls,
		Errors:   result.Errors,
		Duration: result.Duration,
	})
}

func (l *stderrFailureLogger) LogFailure(method string, err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(os.Stderr, "[coldcall] %s failed: %v\n", method, err)
}

func newRetryPolicy(retries int) runner.RetryPolicy {
	source := &jitterSource{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}

	return runner.RetryPolicy{
		MaxAttempts: retries + 1,
		ShouldRetry: func(err error) bool {
			if err == nil {
				return false
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}

			// Node-reported errors are deterministic; retrying the same
			// request gets the same answer.
			var rpcErr *rpc.RPCError
			if errors.As(err, &rpcErr) {
				return false
			}

			var httpErr *rpc.HTTPError
			if errors.As(err, &httpErr) {
				if httpErr.StatusCode == http.StatusTooManyRequests {
					return true
				}
				return httpErr.StatusCode >= 500
			}

			return true
		},
		DelayFunc: func(attempt int, err error) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			backoff := time.Duration(1<<uint(attempt-1)) * baseRetryDelay
			if backoff > maxRetryDelay {
				backoff = maxRetryDelay
			}
			return backoff + source.jitter(backoff/2)
		},
	}
}

func (j *jitterSource) jitter(max time.Duration) time.Duration {
	if j == nil || max <= 0 {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return time.Duration(j.rnd.Int63n(int64(max)))
}
