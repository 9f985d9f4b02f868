// Package rpc implements a JSON-RPC 2.0 client with pluggable transports,
// client-side rate limiting, and per-call tracing.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/coldcall/coldcall/internal/tracing"
)

// Transport delivers a serialized JSON-RPC request and returns the raw
// response body.
type Transport interface {
	RoundTrip(ctx context.Context, payload []byte) ([]byte, error)
	Close() error
}

// Result is a successful JSON-RPC response.
type Result struct {
	// Raw is the response's result member, unparsed.
	Raw json.RawMessage
	// Size is the length in bytes of the full response body as received
	// from the transport.
	Size uint64
}

// Options configures a Client.
type Options struct {
	Transport Transport
	// RatePerSecond caps outgoing calls; 0 means unlimited.
	RatePerSecond int
	// Tracer records one client span per call. Nil disables tracing.
	Tracer trace.Tracer
}

// Client issues JSON-RPC calls over a Transport. It is safe for concurrent
// use as long as the transport is.
type Client struct {
	transport Transport
	limiter   *rate.Limiter
	tracer    trace.Tracer
	nextID    uint64
}

// NewClient creates a client with the given options.
func NewClient(opts Options) *Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.RatePerSecond)
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("coldcall")
	}
	return &Client{
		transport: opts.Transport,
		limiter:   limiter,
		tracer:    tracer,
	}
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// Call performs one JSON-RPC call. It blocks on the rate limiter before
// touching the transport, so configured request rates are never exceeded. A
// node-reported error object surfaces as *RPCError.
func (c *Client) Call(ctx context.Context, method string, params any) (Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("%s: rate limiter: %w", method, err)
	}

	id := atomic.AddUint64(&c.nextID, 1)
	payload, err := json.Marshal(request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%s: marshal request: %w", method, err)
	}

	ctx, span := tracing.StartCallSpan(ctx, c.tracer, method)
	body, err := c.transport.RoundTrip(ctx, payload)
	tracing.EndSpan(span, err, attribute.Int("rpc.response_size", len(body)))
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", method, err)
	}

	if errObj := gjson.GetBytes(body, "error"); errObj.Exists() && errObj.Type != gjson.Null {
		return Result{}, &RPCError{
			Method:  method,
			Code:    errObj.Get("code").Int(),
			Message: errObj.Get("message").String(),
		}
	}

	result := gjson.GetBytes(body, "result")
	if !result.Exists() {
		return Result{}, fmt.Errorf("%s: response has neither result nor error", method)
	}

	return Result{
		Raw:  json.RawMessage(result.Raw),
		Size: uint64(len(body)),
	}, nil
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}
