// Package eventbus implements the Event Bus (spec.md §4 C16): a
// single-producer-multi-consumer fan-out of UI-facing events. Every
// internal component that surfaces state to a UI (Proxy Engine, Intercept
// Gate, Spider, Intruder runner, scanners) publishes through one Bus;
// each subscriber gets its own buffered channel so a slow consumer never
// blocks the producer or other subscribers.
package eventbus

import (
	"sync"
)

// Event types, matching the envelope vocabulary in spec.md §6.
const (
	TypeNewHistoryEntry    = "new_history_entry"
	TypeInterceptedRequest = "intercepted_request"
	TypeInterceptTimeout   = "intercept_timeout"
	TypeWSSessionStarted   = "ws_session_started"
	TypeWSFrame            = "ws_frame"
	TypeWSSessionClosed    = "ws_session_closed"
	TypeSpiderStats        = "spider_stats"
	TypeIntruderStart      = "intruder_progress_start"
	TypeIntruderUpdate     = "intruder_progress_update"
	TypeIntruderResult     = "result"
	TypeIntruderDone       = "intruder_progress_done"
	TypeScanFinding        = "scan_finding"
	TypeProxyStateChanged  = "proxy_state_changed"
)

// Event is the envelope every subscriber receives: {type, data}.
type Event struct {
	Type string
	Data any
}

// defaultBuffer bounds each subscriber's channel. Publish drops the event
// for a subscriber whose channel is full rather than blocking the
// producer — a frozen UI must never stall the proxy's critical path.
const defaultBuffer = 256

// Bus is a single-producer-multi-consumer event fan-out.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new consumer and returns its channel plus an
// unsubscribe function. The channel is closed when Unsubscribe is called.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, defaultBuffer)
	b.subs[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, unsubscribe
}

// Publish fans out ev to every current subscriber. A subscriber with a
// full buffer misses the event instead of blocking the publisher.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// PublishType is a convenience wrapper around Publish.
func (b *Bus) PublishType(typ string, data any) {
	b.Publish(Event{Type: typ, Data: data})
}

// SubscriberCount reports the current number of subscribers, mainly for tests.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
