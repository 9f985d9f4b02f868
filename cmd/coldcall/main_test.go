package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coldcall/coldcall/internal/chunk"
	"github.com/coldcall/coldcall/internal/config"
	"github.com/coldcall/coldcall/internal/rpc"
	"github.com/coldcall/coldcall/internal/runner"
)

func TestRunHelpRequested(t *testing.T) {
	if err := run([]string{"--help"}); err != nil {
		t.Errorf("run(--help) = %v, want nil", err)
	}
	if err := run(nil); err != nil {
		t.Errorf("run() = %v, want nil", err)
	}
}

func TestRunValidationFailure(t *testing.T) {
	err := run([]string{"--target", "http://localhost:8545", "--transport", "carrier-pigeon"})
	var verr config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("run() = %v, want validation error", err)
	}
}

func TestNewTransport(t *testing.T) {
	cfg := &config.Config{
		TargetURL: "http://localhost:8545",
		Transport: config.TransportHTTP,
		Timeout:   time.Second,
	}
	tr, err := newTransport(cfg, false)
	if err != nil {
		t.Fatalf("newTransport: %v", err)
	}
	if _, ok := tr.(*rpc.HTTPTransport); !ok {
		t.Errorf("transport = %T, want *rpc.HTTPTransport", tr)
	}
	_ = tr.Close()

	cfg.Transport = config.TransportWebSocket
	tr, err = newTransport(cfg, false)
	if err != nil {
		t.Fatalf("newTransport: %v", err)
	}
	if _, ok := tr.(*rpc.WebSocketTransport); !ok {
		t.Errorf("transport = %T, want *rpc.WebSocketTransport", tr)
	}
	_ = tr.Close()

	cfg.Transport = "smoke-signal"
	if _, err := newTransport(cfg, false); err == nil {
		t.Error("expected error for unknown transport")
	}
}

func TestPlannedCalls(t *testing.T) {
	datasets, err := runner.Datasets([]string{"blocks", "logs"})
	if err != nil {
		t.Fatalf("Datasets: %v", err)
	}
	chunks := []chunk.Range{{Start: 0, End: 9}, {Start: 10, End: 14}}

	// 15 per-block calls plus one logs call per chunk.
	if got := plannedCalls(datasets, chunks); got != 17 {
		t.Errorf("plannedCalls = %d, want 17", got)
	}
}

func TestRetryPolicyClassification(t *testing.T) {
	policy := newRetryPolicy(3)
	if policy.MaxAttempts != 4 {
		t.Errorf("MaxAttempts = %d, want 4", policy.MaxAttempts)
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"rpc error", &rpc.RPCError{Code: -32000, Message: "header not found"}, false},
		{"http 429", &rpc.HTTPError{StatusCode: 429}, true},
		{"http 503", &rpc.HTTPError{StatusCode: 503}, true},
		{"http 404", &rpc.HTTPError{StatusCode: 404}, false},
		{"transport error", errors.New("connection refused"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.ShouldRetry(tt.err); got != tt.want {
				t.Errorf("ShouldRetry(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryPolicyBackoff(t *testing.T) {
	policy := newRetryPolicy(10)

	prevCap := time.Duration(0)
	for attempt := 1; attempt <= 8; attempt++ {
		delay := policy.DelayFunc(attempt, errors.New("boom"))
		if delay < 0 {
			t.Fatalf("attempt %d: negative delay %v", attempt, delay)
		}
		// Base backoff doubles per attempt, capped at maxRetryDelay, with
		// up to 50% jitter on top.
		limit := maxRetryDelay + maxRetryDelay/2
		if delay > limit {
			t.Errorf("attempt %d: delay %v exceeds limit %v", attempt, delay, limit)
		}
		if delay > prevCap {
			prevCap = delay
		}
	}
}

func TestJitterSourceBounds(t *testing.T) {
	var nilSource *jitterSource
	if got := nilSource.jitter(time.Second); got != 0 {
		t.Errorf("nil source jitter = %v, want 0", got)
	}

	source := &jitterSource{}
	if got := source.jitter(0); got != 0 {
		t.Errorf("jitter(0) = %v, want 0", got)
	}
}
