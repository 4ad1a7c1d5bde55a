// Package events fans annotation lifecycle changes out to subscribers such
// as the SSE stream.
package events

import "sync"

// Actions published by the annotation core.
const (
	Created      = "created"
	Updated      = "updated"
	Deleted      = "deleted"
	DragStarted  = "drag-started"
	Dragged      = "drag"
	DragFinished = "drag-finished"
	Cleared      = "cleared"
)

// Event represents an annotation mutation.
type Event struct {
	Session string `json:"session,omitempty"` // map session, empty outside the server
	Kind    string `json:"kind"`              // "symbol", "circle", "line", "fill"
	Action  string `json:"action"`
	ID      int64  `json:"id"` // annotation ID
}

// Publisher receives events.
type Publisher interface {
	Publish(e Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(e Event)

// Publish calls f(e).
func (f PublisherFunc) Publish(e Event) { f(e) }

// Bus is a simple fan-out pub/sub for annotation events.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Publish sends an event to all subscribers (non-blocking).
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives events.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	_, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
