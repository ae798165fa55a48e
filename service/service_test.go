package service

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"checkout-gateway/models"
)

func testTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("test")
}

type fixedIDs struct{}

func (fixedIDs) NewID(prefix string) string { return prefix + "_1700000000000" }

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.PaymentEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e models.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []models.PaymentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.PaymentEvent(nil), p.events...)
}

// stallingPublisher blocks every Publish until release is closed.
type stallingPublisher struct {
	release   chan struct{}
	published chan models.PaymentEvent
}

func newStallingPublisher() *stallingPublisher {
	return &stallingPublisher{release: make(chan struct{}), published: make(chan models.PaymentEvent, 4)}
}

func (p *stallingPublisher) Publish(_ context.Context, e models.PaymentEvent) error {
	<-p.release
	p.published <- e
	return nil
}

func (p *stallingPublisher) Close() error { return nil }
