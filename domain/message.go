// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable except for the edited flag.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	TextMessage  MessageType = "text"
	ImageMessage MessageType = "image"
	FileMessage  MessageType = "file"
)

const MaxContentLength = 1000

// Message is the durable record broadcast to room subscribers.
// Ordering is CreatedAt first, Seq (insertion sequence) on ties.
type Message struct {
	ID        uuid.UUID   `json:"id"`
	RoomID    RoomID      `json:"roomId"`
	Author    Identity    `json:"author"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	CreatedAt time.Time   `json:"createdAt"`
	Seq       uint64      `json:"seq"`
	Edited    bool        `json:"edited"`
	EditedAt  *time.Time  `json:"editedAt,omitempty"`
}

// Before reports whether m sorts before other in a room timeline.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.Seq < other.Seq
}
