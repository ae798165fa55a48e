package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"checkout-gateway/models"
)

var (
	// ErrQueueFull is returned when the async buffer has no room for an event.
	ErrQueueFull = errors.New("payment event queue is full")
	// ErrPublisherClosed is returned by Publish after Close.
	ErrPublisherClosed = errors.New("payment event publisher is closed")
)

type pendingEvent struct {
	ctx   context.Context
	event models.PaymentEvent
}

// AsyncPublisher hands events to a background worker so callers never wait
// on the broker. Delivery failures are logged by the worker.
type AsyncPublisher struct {
	next   Publisher
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan pendingEvent
	done   chan struct{}
}

// NewAsyncPublisher starts a worker that forwards up to buffer queued events to next.
func NewAsyncPublisher(next Publisher, buffer int, logger *zap.Logger) *AsyncPublisher {
	p := &AsyncPublisher{
		next:   next,
		logger: logger,
		queue:  make(chan pendingEvent, buffer),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues event without blocking. The request context is kept for
// its trace values only; cancelling it does not drop the event.
func (p *AsyncPublisher) Publish(ctx context.Context, event models.PaymentEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.queue <- pendingEvent{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for pending := range p.queue {
		if err := p.next.Publish(pending.ctx, pending.event); err != nil {
			p.logger.Error("Failed to publish payment event",
				zap.String("event_id", pending.event.ID),
				zap.String("type", pending.event.Type),
				zap.String("key", pending.event.Key()),
				zap.Error(err),
			)
		}
	}
}

// Close stops accepting events, drains the queue and closes the wrapped publisher.
func (p *AsyncPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.next.Close()
}
