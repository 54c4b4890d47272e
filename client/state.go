package client

import (
	"chat-relay/domain"
)

// TypingKey identifies one typing indicator.
type TypingKey struct {
	Room domain.RoomID
	User domain.UserID
}

// State is an immutable snapshot of what the client displays.
type State struct {
	Self       domain.Identity
	Rooms      []domain.Room
	ActiveRoom domain.RoomID
	Messages   []domain.Message
	// HasOlder is true while the relay reported more history before the first message.
	HasOlder  bool
	Online    []domain.Identity
	Typing    []domain.Identity
	LastError string
}

// Room returns the listed room with the given id.
func (s State) Room(id domain.RoomID) (domain.Room, bool) {
	for _, room := range s.Rooms {
		if room.ID == id {
			return room, true
		}
	}
	return domain.Room{}, false
}

// IsOnline reports whether an identity has at least one live connection.
func (s State) IsOnline(id domain.UserID) bool {
	for _, identity := range s.Online {
		if identity.ID == id {
			return true
		}
	}
	return false
}
