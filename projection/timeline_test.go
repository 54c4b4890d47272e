package projection

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func message(room domain.RoomID, content string, offset time.Duration, seq uint64) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		RoomID:    room,
		Author:    domain.Identity{ID: "u1", Username: "alice"},
		Content:   content,
		Type:      domain.TextMessage,
		CreatedAt: at.Add(offset),
		Seq:       seq,
	}
}

func contents(messages []domain.Message) []string {
	return lo.Map(messages, func(m domain.Message, _ int) string { return m.Content })
}

func TestTimeline_Consume_MessagePosted(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("general")

	req.True(timeline.Consume(event.MessagePosted{Message: message("general", "Hello Bob", 0, 1)}))
	req.True(timeline.Consume(event.MessagePosted{Message: message("general", "Hi Bob", time.Second, 2)}))

	req.Equal([]string{"Hello Bob", "Hi Bob"}, contents(timeline.Messages()))
}

func TestTimeline_Ignores_Other_Rooms(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("general")

	req.False(timeline.Consume(event.MessagePosted{Message: message("random", "elsewhere", 0, 1)}))
	req.False(timeline.Consume(event.MessageHistory{RoomID: "random", Messages: []domain.Message{message("random", "old", 0, 1)}}))
	req.Zero(timeline.Len())
}

func TestTimeline_Deduplicates_By_ID(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("general")
	m := message("general", "once", 0, 1)

	// Given a message received live
	req.True(timeline.Consume(event.MessagePosted{Message: m}))

	// When the same message comes back inside a history page
	changed := timeline.Consume(event.MessageHistory{RoomID: "general", Messages: []domain.Message{m}})

	// Then it is shown once
	req.False(changed)
	req.Equal([]string{"once"}, contents(timeline.Messages()))
}

func TestTimeline_Orders_By_Creation_Then_Sequence(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("general")

	// Given a live message that arrived before the history reply
	timeline.Consume(event.MessagePosted{Message: message("general", "live", 3*time.Second, 9)})

	// When older history and a same-instant pair arrive out of order
	timeline.Consume(event.MessageHistory{RoomID: "general", Messages: []domain.Message{
		message("general", "second", time.Second, 5),
		message("general", "first", time.Second, 4),
		message("general", "oldest", 0, 1),
	}})

	// Then the timeline follows (creation time, sequence)
	req.Equal([]string{"oldest", "first", "second", "live"}, contents(timeline.Messages()))
}

func TestTimeline_Reset(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("general")
	m := message("general", "hello", 0, 1)
	timeline.Consume(event.MessagePosted{Message: m})

	timeline.Reset("random")

	req.Equal(domain.RoomID("random"), timeline.Room)
	req.Zero(timeline.Len())

	// Coming back to the first room starts from an empty seen set
	timeline.Reset("general")
	req.True(timeline.Consume(event.MessagePosted{Message: m}))
}
