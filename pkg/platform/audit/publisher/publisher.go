// Package publisher delivers audit events to a Store, synchronously or through
// a bounded in-process buffer.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "taskboard/pkg/platform/audit"
)

var (
	// ErrBufferFull is returned by Emit in async mode when the buffer is saturated.
	ErrBufferFull = errors.New("audit buffer full")
	// ErrClosed is returned by Emit once Close has been called.
	ErrClosed = errors.New("audit publisher closed")
)

// Publisher fills in timestamps and categories and hands events to a store.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	// mu guards closed and the buffer send against close(buffer).
	mu     sync.RWMutex
	closed bool
	buffer chan audit.Event
	wg     sync.WaitGroup
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking with a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = make(chan audit.Event, n)
		}
	}
}

// WithLogger reports store failures from the async drain loop.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a publisher writing to store.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event. In async mode it only enqueues. After Close it
// returns ErrClosed.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

// Close stops accepting events and flushes the buffer. It is safe to call
// more than once and concurrently with Emit.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.buffer != nil {
		close(p.buffer)
	}
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("failed to persist audit event",
				"action", event.Action,
				"user_id", event.UserID,
				"error", err,
			)
		}
	}
}
