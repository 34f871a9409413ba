package core

import (
	"sync"
	"time"

	"sshprint/internal/session"
)

type EventType string

const (
	EventConnectionChanged EventType = "connection_changed"
	EventJobUpdated        EventType = "job_updated"
	EventSnapshotPublished EventType = "snapshot_published"
)

// Event is one sequenced notification. Exactly one of Status, Job, and
// Snapshot is set, matching Type.
type Event struct {
	Seq       int64           `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Type      EventType       `json:"type"`
	Status    *session.Status `json:"status,omitempty"`
	Job       *PrintJob       `json:"job,omitempty"`
	Snapshot  *QueueSnapshot  `json:"snapshot,omitempty"`
}

// Bus fans events out to subscribers and keeps a bounded replay buffer
// for incremental reads. The poller publishes snapshots here and the
// orchestrator subscribes, so status inference stays an explicit event
// flow instead of the poller reaching into the job store.
type Bus struct {
	mu          sync.RWMutex
	nextSeq     int64
	maxEvents   int
	events      []Event
	subscribers []func(Event)
}

func NewBus(maxEvents int) *Bus {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &Bus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Subscribe registers a callback invoked synchronously for every
// published event. Subscribers must not block.
func (b *Bus) Subscribe(fn func(Event)) {
	b.mu.Lock()
	b.subscribers = append(b.subscribers, fn)
	b.mu.Unlock()
}

// Publish assigns a sequence number and timestamp, stores the event in
// the replay buffer, and notifies subscribers.
func (b *Bus) Publish(event Event) Event {
	b.mu.Lock()
	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	subscribers := make([]func(Event), len(b.subscribers))
	copy(subscribers, b.subscribers)
	b.mu.Unlock()

	for _, fn := range subscribers {
		fn(event)
	}
	return event
}

// Since returns buffered events with sequence strictly greater than seq.
func (b *Bus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}
