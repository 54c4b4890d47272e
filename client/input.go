package client

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
)

// Input is the closed set of transitions of the Synchronizer.
// Server events and user actions are both inputs; the typing expiry is internal.
type Input interface {
	isInput()
}

// ServerEvent wraps an event received from the relay.
type ServerEvent struct {
	Event event.DomainEvent
}

// JoinRoom switches the active room.
type JoinRoom struct {
	RoomID domain.RoomID
}

type LeaveRoom struct {
	RoomID domain.RoomID
}

// SendMessage posts to the active room. Nothing is displayed until the relay broadcasts it back.
type SendMessage struct {
	Content string
	Type    domain.MessageType
}

type CreateRoom struct {
	Name        string
	Description string
	Private     bool
}

// AddMember makes UserID a persisted member of the active room.
type AddMember struct {
	UserID domain.UserID
}

// StartTyping and StopTyping signal on the active room.
type StartTyping struct{}

type StopTyping struct{}

// LoadOlder requests the page of history before the oldest loaded message.
type LoadOlder struct{}

type RefreshRooms struct{}

type RefreshOnline struct{}

type ClearError struct{}

// typingExpired fires when a typing entry saw no signal for the TTL.
// gen identifies the timer that produced it, so a replaced timer firing late is ignored.
type typingExpired struct {
	key TypingKey
	gen uint64
}

func (ServerEvent) isInput()   {}
func (JoinRoom) isInput()      {}
func (LeaveRoom) isInput()     {}
func (SendMessage) isInput()   {}
func (CreateRoom) isInput()    {}
func (AddMember) isInput()     {}
func (StartTyping) isInput()   {}
func (StopTyping) isInput()    {}
func (LoadOlder) isInput()     {}
func (RefreshRooms) isInput()  {}
func (RefreshOnline) isInput() {}
func (ClearError) isInput()    {}
func (typingExpired) isInput() {}
