// Package notify delivers ticket lifecycle events outside the request path.
//
// Services publish into a Dispatcher, which buffers events in a bounded queue
// and hands them to a Sink from a single worker goroutine. Publishing never
// blocks: when the queue is full the event is dropped and logged.
package notify

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cimillas/ticket-inventory/internal/domain"
)

const (
	defaultQueueSize = 1024
	drainTimeout     = 5 * time.Second
)

// Sink receives events from the dispatcher worker.
type Sink interface {
	Deliver(ctx context.Context, event domain.TicketEvent) error
}

type Dispatcher struct {
	queue   chan domain.TicketEvent
	sink    Sink
	logger  *slog.Logger
	dropped atomic.Int64
}

func NewDispatcher(sink Sink, queueSize int, logger *slog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		queue:  make(chan domain.TicketEvent, queueSize),
		sink:   sink,
		logger: logger,
	}
}

// Publish enqueues event without blocking.
func (d *Dispatcher) Publish(event domain.TicketEvent) {
	select {
	case d.queue <- event:
	default:
		d.dropped.Add(1)
		d.logger.Warn("event queue full, dropping event",
			"event_id", event.ID,
			"type", string(event.Type),
			"ticket_id", event.TicketID,
		)
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Run delivers events until ctx is cancelled, then drains what is already
// queued with a short deadline.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain(context.WithoutCancel(ctx))
			return
		case event := <-d.queue:
			d.deliver(ctx, event)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	for {
		select {
		case event := <-d.queue:
			d.deliver(ctx, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event domain.TicketEvent) {
	if err := d.sink.Deliver(ctx, event); err != nil {
		d.logger.Error("deliver event failed",
			"event_id", event.ID,
			"type", string(event.Type),
			"ticket_id", event.TicketID,
			"error", err,
		)
	}
}
