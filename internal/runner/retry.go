package runner

import (
	"context"
	"errors"
	"time"

	"github.com/coldcall/coldcall/internal/rpc"
)

// RetryPolicy controls how a retrying fetcher reissues failed calls.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// Delay is the pause between attempts.
	Delay time.Duration

	// ShouldRetry decides whether an error is worth retrying. When nil,
	// transport errors are retried and JSON-RPC error responses are
	// not.
	ShouldRetry func(err error) bool

	// DelayFunc computes the pause before retry attempt n (1-based),
	// given the error being retried. When set it takes precedence over
	// Delay.
	DelayFunc func(attempt int, err error) time.Duration
}

func defaultShouldRetry(err error) bool {
	var rpcErr *rpc.RPCError
	return !errors.As(err, &rpcErr)
}

type retryFetcher struct {
	next   Fetcher
	policy RetryPolicy
}

// WithRetry wraps f so failed calls are reissued according to policy.
func WithRetry(f Fetcher, policy RetryPolicy) Fetcher {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.ShouldRetry == nil {
		policy.ShouldRetry = defaultShouldRetry
	}
	return &retryFetcher{next: f, policy: policy}
}

func (r *retryFetcher) Call(ctx context.Context, method string, params any) (rpc.Result, error) {
	var res rpc.Result
	var err error
	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if !r.policy.ShouldRetry(err) {
				return res, err
			}
			delay := r.policy.Delay
			if r.policy.DelayFunc != nil {
				delay = r.policy.DelayFunc(attempt, err)
			}
			select {
			case <-ctx.Done():
				return rpc.Result{}, ctx.Err()
			case <-time.After(delay):
			}
		}
		res, err = r.next.Call(ctx, method, params)
		if err == nil {
			return res, nil
		}
	}
	return res, err
}

// FailureLogger receives call failures from a logging fetcher.
type FailureLogger interface {
	LogFailure(method string, err error)
}

type loggingFetcher struct {
	next   Fetcher
	logger FailureLogger
}

// WithLogging wraps f so every failed call is reported to logger.
func WithLogging(f Fetcher, logger FailureLogger) Fetcher {
	return &loggingFetcher{next: f, logger: logger}
}

func (l *loggingFetcher) Call(ctx context.Context, method string, params any) (rpc.Result, error) {
	res, err := l.next.Call(ctx, method, params)
	if err != nil && l.logger != nil {
		l.logger.LogFailure(method, err)
	}
	return res, err
}
