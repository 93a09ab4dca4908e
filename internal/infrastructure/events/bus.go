package events

import (
	"sync"
	"time"

	"lokapasar/internal/domain/entity"
	"lokapasar/pkg/logger"
)

// DomainEvent is the envelope business code hands to the notification
// pipeline. Publishing is fire-and-forget: the business transaction that
// produced the event never learns whether notification handling succeeded.
type DomainEvent struct {
	Kind       entity.NotificationKind
	Recipient  string
	Payload    entity.NotificationPayload
	OccurredAt time.Time
}

// Bus is a process-local buffered queue between event producers and the
// notification pipeline consumer.
type Bus struct {
	ch     chan DomainEvent
	closed bool
	mu     sync.Mutex
}

func NewBus(size int) *Bus {
	if size <= 0 {
		size = 256
	}
	return &Bus{
		ch: make(chan DomainEvent, size),
	}
}

// Publish enqueues an event without blocking the caller. When the queue is
// full or the bus is closed the event is dropped with a warning; the
// persisted business write it describes is already durable, and notification
// loss is acceptable by contract.
func (b *Bus) Publish(event DomainEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		logger.Warn("Event bus closed, dropping %s event for %s", event.Kind, event.Recipient)
		return
	}

	select {
	case b.ch <- event:
	default:
		logger.Warn("Event queue full, dropping %s event for %s", event.Kind, event.Recipient)
	}
}

// Events exposes the consumer side of the queue.
func (b *Bus) Events() <-chan DomainEvent {
	return b.ch
}

// Close stops accepting events and lets the consumer drain what remains.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.ch)
	}
}
