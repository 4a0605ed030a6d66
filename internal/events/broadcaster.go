// Package events provides a broadcaster for share change notifications.
package events

import (
	"sync"
	"time"

	"github.com/devans0/fileshare-client/internal/metrics"
)

const (
	// EventListed is published when a file becomes registered.
	EventListed = "listed"
	// EventDelisted is published when a file stops being registered.
	EventDelisted = "delisted"
	// EventDirChanged is published when the share directory is swapped.
	EventDirChanged = "dir_changed"
	// EventSynced is published once after every reconcile pass.
	EventSynced = "synced"
)

// Event represents a change to the set of shared files.
type Event struct {
	Type      string
	Name      string
	Path      string
	Timestamp int64
}

// Broadcaster manages subscribers and publishes share change events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe adds a new subscriber and returns its event channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	close(ch)
	b.mu.Unlock()
}

// Publish sends an event to all subscribers. Non-blocking: drops events
// for slow consumers.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Drop event for slow consumer
		}
	}
	metrics.RecordShareEvent(event.Type)
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
