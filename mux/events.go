package mux

import (
	"sync"
	"time"
)

// EventType identifies a state change pushed to observers.
type EventType string

const (
	// EventSubscribed fires when a widget attaches to a subject.
	EventSubscribed EventType = "subscribed"
	// EventUnsubscribed fires when a widget detaches from a subject.
	EventUnsubscribed EventType = "unsubscribed"
	// EventAppended fires when a sample lands in a widget buffer.
	EventAppended EventType = "appended"
	// EventQueueDropped fires when the overflow policy sheds a message.
	EventQueueDropped EventType = "queue_dropped"
	// EventMemoryWarning fires once when aggregate buffer memory crosses
	// the warning threshold; it re-arms when usage falls back below it.
	EventMemoryWarning EventType = "memory_warning"
	// EventMemoryCritical fires once when aggregate buffer memory crosses
	// the critical threshold.
	EventMemoryCritical EventType = "memory_critical"
	// EventBuffersCleared fires after a manual ClearAllBuffers.
	EventBuffersCleared EventType = "buffers_cleared"
)

// Event describes one state change. WidgetID and Subject are set when the
// change concerns a specific widget or subscription.
type Event struct {
	Type      EventType `json:"type"`
	WidgetID  string    `json:"widget_id,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Observer receives change events. Observers run synchronously on the
// goroutine that caused the change and must not block.
type Observer func(Event)

// notifier holds the observer list. Emission never runs under a component
// lock, so observers may call back into the multiplexer.
type notifier struct {
	mu        sync.RWMutex
	observers []Observer
}

func (n *notifier) add(fn Observer) {
	if fn == nil {
		return
	}
	n.mu.Lock()
	n.observers = append(n.observers, fn)
	n.mu.Unlock()
}

func (n *notifier) emit(ev Event) {
	n.mu.RLock()
	observers := n.observers
	n.mu.RUnlock()

	for _, fn := range observers {
		fn(ev)
	}
}
