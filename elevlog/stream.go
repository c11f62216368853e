// stream.go
// Purpose: Observable event stream. Every significant transition of a car,
// the dispatcher or the system is logged and fanned out to subscribers.
package elevlog

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type EventKind string

const (
	EventMoved        EventKind = "moved"
	EventArrived      EventKind = "arrived"
	EventDoorsOpening EventKind = "doors_opening"
	EventLoading      EventKind = "loading"
	EventDoorsClosing EventKind = "doors_closing"
	EventDoorsClosed  EventKind = "doors_closed"
	EventAccepted     EventKind = "accepted"
	EventRejected     EventKind = "rejected"
	EventAssigned     EventKind = "assigned"
	EventReassigned   EventKind = "reassigned"
	EventDropped      EventKind = "dropped"
	EventStarted      EventKind = "started"
	EventStopped      EventKind = "stopped"
)

// NoCar marks events not tied to a car.
const NoCar = -1

type Event struct {
	Time    time.Time `json:"time"`
	Kind    EventKind `json:"kind"`
	Car     int       `json:"car"`
	Request string    `json:"request,omitempty"`
	Text    string    `json:"text"`
}

type subscriber struct {
	ch chan Event
}

// Stream never blocks an emitter: a subscriber whose buffer is full misses
// the event.
type Stream struct {
	log zerolog.Logger

	mu      sync.Mutex
	subs    map[*subscriber]struct{}
	history []Event
	next    int
	filled  bool
}

func NewStream(log zerolog.Logger, history int) *Stream {
	if history < 1 {
		history = 1
	}
	return &Stream{
		log:     log,
		subs:    make(map[*subscriber]struct{}),
		history: make([]Event, history),
	}
}

func (s *Stream) Emit(kind EventKind, car int, request string, text string) {
	ev := Event{Time: time.Now(), Kind: kind, Car: car, Request: request, Text: text}

	var e *zerolog.Event
	switch kind {
	case EventRejected, EventDropped, EventReassigned:
		e = s.log.Warn()
	default:
		e = s.log.Info()
	}
	e = e.Str("event", string(kind))
	if car != NoCar {
		e = e.Int("car", car)
	}
	if request != "" {
		e = e.Str("request", request)
	}
	e.Msg(text)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[s.next] = ev
	s.next = (s.next + 1) % len(s.history)
	if s.next == 0 {
		s.filled = true
	}
	for sub := range s.subs {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Subscribe returns a channel receiving events emitted from now on. The
// returned cancel func unregisters and closes the channel.
func (s *Stream) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	sub := &subscriber{ch: make(chan Event, buffer)}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, sub)
			s.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Recent returns up to n of the latest events, oldest first.
func (s *Stream) Recent(n int) []Event {
	if n <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.next
	if s.filled {
		size = len(s.history)
	}
	if n > size {
		n = size
	}
	out := make([]Event, 0, n)
	for i := n; i > 0; i-- {
		idx := (s.next - i + len(s.history)) % len(s.history)
		out = append(out, s.history[idx])
	}
	return out
}
