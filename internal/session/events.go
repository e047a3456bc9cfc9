package session

import (
	"sync"

	"github.com/stemsi/exstem-gateway/internal/model"
)

// State enumerates session states across all session variants.
type State string

const (
	StateNotStarted           State = "not_started"
	StateInProgress           State = "in_progress"
	StatePaused               State = "paused"
	StateExpired              State = "expired"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateSubmitted            State = "submitted"
	StateGraded               State = "graded"
	StateNothingToRetry       State = "nothing_to_retry"
)

// Terminal reports whether no further answering is possible.
func (s State) Terminal() bool {
	return s == StateSubmitted || s == StateGraded || s == StateNothingToRetry
}

// EventType enumerates events published to session subscribers.
type EventType string

const (
	EventSnapshot EventType = "snapshot"
	EventTick     EventType = "tick"
	EventState    EventType = "state"
	EventGraded   EventType = "graded"
	EventError    EventType = "error"
)

// Event is a state change notification pushed to stream subscribers.
type Event struct {
	Type          EventType     `json:"type"`
	State         State         `json:"state"`
	TimeRemaining int           `json:"time_remaining"`
	Result        *model.Result `json:"result,omitempty"`
	Error         string        `json:"error,omitempty"`
}

const subscriberBuffer = 32

// broadcaster fans events out to subscribers without ever blocking the
// publisher; a full subscriber buffer drops the event.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	closed bool
}

func (b *broadcaster) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	if b.subs == nil {
		b.subs = make(map[int]chan Event)
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

func (b *broadcaster) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *broadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
