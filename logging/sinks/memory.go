package sinks

import (
	"context"
	"sync"

	"github.com/woowenjun99/CG4002-Evaluation-Server/logging"
)

// MemorySink keeps every event in memory. Tests read it back with Events or
// wait on a specific event type with WaitFor.
type MemorySink struct {
	mu     sync.Mutex
	events []logging.Event
	notify chan struct{}
}

func NewMemorySink() *MemorySink {
	return &MemorySink{notify: make(chan struct{})}
}

func (s *MemorySink) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, logging.CloneEvent(event))
	close(s.notify)
	s.notify = make(chan struct{})
	return nil
}

func (s *MemorySink) Events() []logging.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]logging.Event(nil), s.events...)
}

// OfType returns the recorded events of one type.
func (s *MemorySink) OfType(typ logging.EventType) []logging.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []logging.Event
	for _, event := range s.events {
		if event.Type == typ {
			out = append(out, event)
		}
	}
	return out
}

// WaitFor blocks until at least n events of typ were written or ctx ends.
func (s *MemorySink) WaitFor(ctx context.Context, typ logging.EventType, n int) ([]logging.Event, error) {
	for {
		s.mu.Lock()
		notify := s.notify
		s.mu.Unlock()
		if got := s.OfType(typ); len(got) >= n {
			return got, nil
		}
		select {
		case <-ctx.Done():
			return s.OfType(typ), ctx.Err()
		case <-notify:
		}
	}
}

func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = s.events[:0]
}

func (s *MemorySink) Close(context.Context) error {
	return nil
}
