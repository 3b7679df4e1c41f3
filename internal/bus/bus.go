// Package bus is the process-local, typed broadcast channel that decouples
// the queue's state-change events from the aggregator that reacts to them.
// It is a small mutex-guarded struct with sync.Once to make Close
// idempotent; unlike the worker API's rate limiter
// (internal/api/middleware/ratelimit.go) it runs no background goroutine and
// has no done channel.
package bus

import (
	"context"
	"sync"

	"github.com/lila-deepq/deepq/internal/model"
)

// EventKind discriminates the tagged union of messages the Bus carries.
type EventKind int

const (
	JobAcquired EventKind = iota
	JobAborted
	JobCompleted
)

func (k EventKind) String() string {
	switch k {
	case JobAcquired:
		return "acquired"
	case JobAborted:
		return "aborted"
	case JobCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Event is the tagged message published on state-changing queue operations.
// Kind discriminates the variant; JobID and GameID are always populated so
// that a completed-event subscriber never needs a second lookup just to
// resolve the job.
type Event struct {
	Kind   EventKind
	JobID  model.JobId
	GameID model.GameId
}

// DefaultCapacity is the default ring size per subscriber when none is
// configured, matching LILA_DEEPQ_CHANNEL_CAPACITY's default.
const DefaultCapacity = 1024

// Bus is a bounded, multi-subscriber broadcast channel. Publication is
// non-blocking: a subscriber whose ring is full observes a lag signal
// (its oldest unread event is dropped) instead of stalling the publisher.
// Messages published while no subscriber is attached are dropped — the Bus
// carries no history and survives no restart; durability lives in the Store.
type Bus struct {
	capacity int

	mu          sync.Mutex
	subscribers map[*Subscription]struct{}
	closed      bool
	closeOnce   sync.Once
}

// New creates a Bus with the given per-subscriber ring capacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Bus{
		capacity:    capacity,
		subscribers: make(map[*Subscription]struct{}),
	}
}

// Subscription is one subscriber's view of the Bus: a bounded channel of
// events plus a running count of events dropped because the subscriber fell
// behind.
type Subscription struct {
	bus     *Bus
	events  chan Event
	mu      sync.Mutex
	dropped uint64
}

// Subscribe attaches a new subscriber. Every event published after this call
// returns is delivered to it (subject to the lag-drop policy); events
// published before are never seen.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{
		bus:    b,
		events: make(chan Event, b.capacity),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers[sub] = struct{}{}

	return sub
}

// Unsubscribe detaches a subscriber. Safe to call more than once.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
}

// Publish broadcasts an event to every current subscriber. Non-blocking: a
// subscriber whose ring is full has its oldest unread event dropped to make
// room, and its Dropped counter is incremented. Slow subscribers never
// throttle fast ones or the publisher.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for sub := range b.subscribers {
		sub.deliver(evt)
	}
}

func (s *Subscription) deliver(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case s.events <- evt:
	default:
		// Ring full: drop the oldest to make room for the newest, recording
		// the lag so callers can detect they've fallen behind.
		select {
		case <-s.events:
			s.dropped++
		default:
		}

		select {
		case s.events <- evt:
		default:
		}
	}
}

// Receive blocks until an event arrives, the context is canceled, or the Bus
// is closed. Returns ok=false on cancellation or close.
func (s *Subscription) Receive(ctx context.Context) (Event, bool) {
	select {
	case evt, ok := <-s.events:
		return evt, ok
	case <-ctx.Done():
		return Event{}, false
	}
}

// Dropped returns the number of events this subscriber has lost to lag since
// subscribing.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dropped
}

// Close shuts the Bus down: every subscriber's channel is closed, unblocking
// any pending Receive with ok=false. Safe to call more than once.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		b.closed = true

		for sub := range b.subscribers {
			close(sub.events)
		}

		b.subscribers = nil
	})
}
