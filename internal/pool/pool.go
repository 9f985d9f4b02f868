// Package pool provides a bounded pool of reusable node connections.
package pool

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Conn represents any connection that can be pooled and reused.
type Conn interface {
	Connect(ctx context.Context) error
	Close() error
}

// Pool keeps up to size idle connections to a single endpoint. Get hands
// out an idle connection when one is available and a fresh, unconnected
// one otherwise; Put returns a healthy connection for reuse.
type Pool struct {
	factory func() Conn
	idle    chan Conn

	mu     sync.Mutex
	closed bool
}

// New creates a pool holding at most size idle connections.
func New(size int, factory func() Conn) *Pool {
	if size <= 0 {
		size = 10 // default size
	}
	return &Pool{
		factory: factory,
		idle:    make(chan Conn, size),
	}
}

// Get retrieves or creates a connection.
// If reused is true, the connection was taken from the pool.
// If reused is false, a new connection was created and the caller should
// connect it.
func (p *Pool) Get() (conn Conn, reused bool) {
	// The channel operation stays under the mutex so a concurrent Close
	// cannot close idle between the check and the receive.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return p.factory(), false
	}

	select {
	case conn = <-p.idle:
		return conn, true
	default:
		return p.factory(), false
	}
}

// Put returns a connection to the pool for reuse.
// If the pool is full or closed, the connection is closed instead.
func (p *Pool) Put(conn Conn) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return conn.Close()
	}

	select {
	case p.idle <- conn:
		p.mu.Unlock()
		return nil
	default:
		p.mu.Unlock()
		return conn.Close()
	}
}

// Refresh discards a stale connection and dials a replacement.
func (p *Pool) Refresh(ctx context.Context, stale Conn) (Conn, error) {
	_ = stale.Close()

	next := p.factory()
	if err := next.Connect(ctx); err != nil {
		return nil, err
	}
	return next, nil
}

// Close closes all idle connections. Connections currently checked out
// are closed when they are returned via Put.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	// Every Get/Put checks closed under the mutex before touching idle,
	// so no send can race the close below.
	close(p.idle)
	var errs []string
	for conn := range p.idle {
		if err := conn.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("pool close errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
