package runtime

import (
	"chat-relay/domain/event"
	"context"
	"sync"

	"github.com/samber/lo"
)

// Sink records every event it consumes. A non nil err makes it fail like a dead transport.
type Sink struct {
	mu     sync.Mutex
	events []event.DomainEvent
	err    error
}

func (s *Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *Sink) Events() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.DomainEvent(nil), s.events...)
}

// Named returns the recorded events of one type.
func (s *Sink) Named(name event.Type) []event.DomainEvent {
	return lo.Filter(s.Events(), func(e event.DomainEvent, _ int) bool { return e.Name() == name })
}

func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// blockingSink holds every event until the delivery deadline expires.
type blockingSink struct{}

func (blockingSink) Consume(ctx context.Context, e event.DomainEvent) error {
	<-ctx.Done()
	return ctx.Err()
}
