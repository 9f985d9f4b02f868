package rpc_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/coldcall/coldcall/internal/rpc"
)

func TestHTTPTransportTracePropagation(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	var mu sync.Mutex
	var lastTraceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		lastTraceparent = r.Header.Get("Traceparent")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x1"}`))
	}))
	t.Cleanup(srv.Close)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(tracetest.NewInMemoryExporter()))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "extract")
	defer span.End()

	tests := []struct {
		name       string
		propagate  bool
		wantHeader bool
	}{
		{"enabled", true, true},
		{"disabled", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := rpc.NewHTTPTransport(rpc.HTTPConfig{
				URL:       srv.URL,
				Timeout:   5 * time.Second,
				Propagate: tt.propagate,
			})
			defer transport.Close()

			if _, err := transport.RoundTrip(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"eth_blockNumber"}`)); err != nil {
				t.Fatalf("RoundTrip: %v", err)
			}

			mu.Lock()
			got := lastTraceparent
			mu.Unlock()
			if tt.wantHeader && got == "" {
				t.Error("traceparent header not injected")
			}
			if !tt.wantHeader && got != "" {
				t.Errorf("traceparent header injected despite propagation off: %q", got)
			}
		})
	}
}
