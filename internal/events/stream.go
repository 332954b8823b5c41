package events

import "sync/atomic"

// Stream forwards bus events into a buffered channel for a live observer.
// When the buffer is full the event is dropped and counted; the engine never waits on a reader.
type Stream struct {
	ch           chan Event
	droppedCount atomic.Uint64
}

// NewStream attaches a stream with the given buffer size to bus.
func NewStream(bus *Bus, bufferSize int) *Stream {
	s := &Stream{ch: make(chan Event, bufferSize)}
	bus.Subscribe(s.push)
	return s
}

func (s *Stream) push(ev Event) {
	select {
	case s.ch <- ev:
	default:
		s.droppedCount.Add(1)
	}
}

// Events returns the receive side of the stream.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Drain returns whatever is buffered without blocking.
func (s *Stream) Drain() []Event {
	var out []Event
	for {
		select {
		case ev := <-s.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// DroppedCount returns the number of events dropped because the buffer was full.
func (s *Stream) DroppedCount() uint64 {
	return s.droppedCount.Load()
}
