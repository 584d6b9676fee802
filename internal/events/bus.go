// Package events is the in-process progress feed. Scheduler passes,
// on-demand submissions and probe verdicts land here and fan out to
// whoever is listening, typically the SSE endpoint.
package events

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event types published by the daemon.
const (
	TypeCrawlStarted     = "crawl.started"
	TypeCrawlTarget      = "crawl.target"
	TypeCrawlFinished    = "crawl.finished"
	TypeJobsBatch        = "jobs.batch"
	TypeAvailabilityPass = "availability.pass"
	TypeSubmission       = "submission.update"
)

// Event is one progress notification. Entity names what the event is
// about ("target:12", "episode:340"); Payload carries the task-specific
// summary and marshals as-is into the SSE data frame.
type Event struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	Entity  string      `json:"entity,omitempty"`
	Message string      `json:"message,omitempty"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload,omitempty"`
}

// Bus fans events out to subscribers. Every subscriber owns a bounded
// queue; one that stops draining gets dropped so publishers never
// block on a stuck reader.
type Bus struct {
	mu      sync.Mutex
	subs    map[uint64]chan Event
	nextID  uint64
	buffer  int
	dropped atomic.Int64
}

// NewBus creates a bus whose subscribers buffer up to size events.
// A size of zero or less falls back to 64.
func NewBus(size int) *Bus {
	if size <= 0 {
		size = 64
	}
	return &Bus{
		subs:   make(map[uint64]chan Event),
		buffer: size,
	}
}

// Subscribe registers a listener and returns its channel plus a cancel
// function. The channel closes when cancel runs or when the listener
// falls too far behind. Cancel is safe to call more than once.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish stamps the event with an id and time, then hands it to every
// subscriber without waiting. A subscriber whose queue is full is
// removed and its channel closed; readers see the close and know they
// missed events.
func (b *Bus) Publish(event Event) {
	event.ID = uuid.NewString()
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			delete(b.subs, id)
			close(ch)
			b.dropped.Add(1)
			log.Printf("[WARN] events: dropping subscriber %d, queue full at %q", id, event.Type)
		}
	}
}

// Subscribers reports how many listeners are currently attached.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped reports how many subscribers were removed for falling behind.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
