// Package projection builds local timelines from observed events.
// Handles ordering, deduplication, and projections.
// Does not emit events or interact with UI directly.
package projection

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"sort"

	"github.com/google/uuid"
)

// Timeline holds the ordered messages of a single room.
// It is not safe for concurrent use; its owner serializes access.
type Timeline struct {
	Room     domain.RoomID
	messages []domain.Message
	seen     map[uuid.UUID]struct{}
}

func NewTimeline(room domain.RoomID) *Timeline {
	return &Timeline{Room: room, seen: make(map[uuid.UUID]struct{})}
}

// Consume applies a newMessage or messageHistory event addressed to the timeline's room.
// It reports whether the timeline changed.
func (t *Timeline) Consume(e event.DomainEvent) bool {
	switch evt := e.(type) {
	case event.MessagePosted:
		if evt.RoomID != t.Room {
			return false
		}
		return t.insert(evt.Message)
	case event.MessageHistory:
		if evt.RoomID != t.Room {
			return false
		}
		changed := false
		for _, m := range evt.Messages {
			if m.RoomID != t.Room && m.RoomID != "" {
				continue
			}
			if t.insert(m) {
				changed = true
			}
		}
		return changed
	}
	return false
}

// insert keeps the timeline sorted by (CreatedAt, Seq) and ignores ids already present.
func (t *Timeline) insert(m domain.Message) bool {
	if _, ok := t.seen[m.ID]; ok {
		return false
	}
	t.seen[m.ID] = struct{}{}
	i := sort.Search(len(t.messages), func(i int) bool { return m.Before(t.messages[i]) })
	t.messages = append(t.messages, domain.Message{})
	copy(t.messages[i+1:], t.messages[i:])
	t.messages[i] = m
	return true
}

// Reset empties the timeline and points it at another room.
func (t *Timeline) Reset(room domain.RoomID) {
	t.Room = room
	t.messages = nil
	t.seen = make(map[uuid.UUID]struct{})
}

func (t *Timeline) Len() int {
	return len(t.messages)
}

// Messages returns a copy in display order.
func (t *Timeline) Messages() []domain.Message {
	return append([]domain.Message(nil), t.messages...)
}
