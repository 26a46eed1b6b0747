package events

import (
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Kind identifies what changed.
type Kind string

const (
	KindWeatherConditionChanged Kind = "weather_condition_changed"
	KindWeatherTempJump         Kind = "weather_temp_jump"
	KindPriceAlert              Kind = "price_alert"
)

// Direction of a numeric change.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// ChangeEvent is produced by the store when new data differs meaningfully from
// the prior snapshot. It is consumed once and never persisted.
type ChangeEvent struct {
	Kind      Kind      `json:"kind"`
	SubjectID string    `json:"subjectId"`
	Message   string    `json:"message"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Delta     float64   `json:"delta,omitempty"`
	Direction string    `json:"direction,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher accepts change events. Implementations must not block.
type Publisher interface {
	Publish(e ChangeEvent)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(e ChangeEvent)

func (f PublisherFunc) Publish(e ChangeEvent) { f(e) }

// Bus is a bounded in-process queue between the store and the notification
// emitter. Publish never blocks: when the buffer is full the event is dropped.
type Bus struct {
	mu      sync.RWMutex
	ch      chan ChangeEvent
	closed  bool
	dropped atomic.Int64
	logger  *zap.Logger
}

// NewBus creates a bus buffering up to size events.
func NewBus(size int, logger *zap.Logger) *Bus {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		ch:     make(chan ChangeEvent, size),
		logger: logger,
	}
}

// Publish enqueues e, dropping it if the bus is full or closed.
func (b *Bus) Publish(e ChangeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	select {
	case b.ch <- e:
	default:
		b.dropped.Inc()
		b.logger.Warn("event bus full, dropping event",
			zap.String("kind", string(e.Kind)),
			zap.String("subject", e.SubjectID))
	}
}

// Events returns the receive side. It is closed by Close.
func (b *Bus) Events() <-chan ChangeEvent {
	return b.ch
}

// Dropped returns the number of events discarded because the buffer was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close stops accepting events and closes the channel. Safe to call twice.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
