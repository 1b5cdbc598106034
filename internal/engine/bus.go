// Package engine hosts the live trading core: the event bus, the
// position manager and the orchestrator that drives strategy cycles
// against an exchange.
package engine

import (
	"sync"
	"time"

	"github.com/helix-lab/helix-trading/internal/types"
)

// EventType identifies a bus event.
type EventType string

const (
	// EventStatusChange fires when the orchestrator starts or stops.
	EventStatusChange EventType = "status_change"
	// EventSignal fires for every generated signal, actionable or not.
	EventSignal EventType = "signal"
	// EventPositionOpened fires after an entry order fills.
	EventPositionOpened EventType = "position_opened"
	// EventPositionClosed fires after an exit order fills.
	EventPositionClosed EventType = "position_closed"
	// EventStrategyUpdated fires when the active configuration changes.
	EventStrategyUpdated EventType = "strategy_updated"
	// EventLog carries free-form diagnostic messages.
	EventLog EventType = "log"
)

// Event is one bus notification. Only the fields relevant to the event
// type are populated.
type Event struct {
	Type     EventType
	Time     time.Time
	Message  string
	Signal   *types.Signal
	Position *types.Position
	Trade    *types.Trade
	Status   *types.BotStatus
}

// Handler consumes one event. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(Event)

// Bus is a typed publish/subscribe hub. Delivery is synchronous and in
// subscription order, so consumers observe events in the order the core
// produced them.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	all      []Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		all:      nil,
	}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.all = append(b.all, handler)
}

// Publish delivers the event to all matching handlers. When the event
// time is zero it is stamped with the current time.
func (b *Bus) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	b.mu.RLock()
	typed := b.handlers[event.Type]
	all := b.all
	b.mu.RUnlock()

	for _, handler := range typed {
		handler(event)
	}

	for _, handler := range all {
		handler(event)
	}
}
