package rpc

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coldcall/coldcall/internal/tracing"
)

const maxErrorBodyBytes = 1024

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	URL     string
	Headers http.Header
	Timeout time.Duration
	// Propagate injects W3C trace context headers into every request.
	Propagate bool
}

// HTTPTransport posts JSON-RPC payloads to a node's HTTP endpoint. It is
// safe for concurrent use.
type HTTPTransport struct {
	url       string
	headers   http.Header
	propagate bool
	client    *http.Client
}

// NewHTTPTransport creates a transport for the given endpoint. Extra headers
// are attached to every request.
func NewHTTPTransport(cfg HTTPConfig) *HTTPTransport {
	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &HTTPTransport{
		url:       cfg.URL,
		headers:   cfg.Headers,
		propagate: cfg.Propagate,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}
}

func (t *HTTPTransport) RoundTrip(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, values := range t.headers {
		for _, val := range values {
			req.Header.Add(key, val)
		}
	}
	if t.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	return io.ReadAll(resp.Body)
}

// Close closes idle connections held by the underlying client.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
