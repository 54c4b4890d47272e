// Package event defines the events exchanged over a persistent connection.
// Server events are DomainEvent values, client requests are Request values.
// Both travel inside an Envelope as JSON.
package event

import (
	"chat-relay/domain"
	"time"
)

type Type string

// Server to client.
const (
	NewMessageType        Type = "newMessage"
	UserOnlineType        Type = "userOnline"
	UserOfflineType       Type = "userOffline"
	OnlineUsersType       Type = "onlineUsers"
	UserJoinedRoomType    Type = "userJoinedRoom"
	UserLeftRoomType      Type = "userLeftRoom"
	UserTypingType        Type = "userTyping"
	UserStoppedTypingType Type = "userStoppedTyping"
	MessageHistoryType    Type = "messageHistory"
	RoomListType          Type = "roomList"
	RoomCreatedType       Type = "roomCreated"
	MemberAddedType       Type = "memberAdded"
	AddedToRoomType       Type = "addedToRoom"
	ErrorType             Type = "error"
	PongType              Type = "pong"
)

type DomainEvent interface {
	Name() Type
}

type MessagePosted struct {
	domain.Message
}

func (MessagePosted) Name() Type { return NewMessageType }

type UserOnline struct {
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
	Avatar   string        `json:"avatar,omitempty"`
}

func (UserOnline) Name() Type { return UserOnlineType }

type UserOffline struct {
	UserID   domain.UserID `json:"userId"`
	LastSeen time.Time     `json:"lastSeen"`
}

func (UserOffline) Name() Type { return UserOfflineType }

// OnlineUsers is the full online set, sent once per new connection and on demand.
type OnlineUsers []domain.Identity

func (OnlineUsers) Name() Type { return OnlineUsersType }

type UserJoinedRoom struct {
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
	RoomID   domain.RoomID `json:"roomId"`
}

func (UserJoinedRoom) Name() Type { return UserJoinedRoomType }

type UserLeftRoom struct {
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
	RoomID   domain.RoomID `json:"roomId"`
}

func (UserLeftRoom) Name() Type { return UserLeftRoomType }

type UserTyping struct {
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
	RoomID   domain.RoomID `json:"roomId"`
}

func (UserTyping) Name() Type { return UserTypingType }

type UserStoppedTyping struct {
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
	RoomID   domain.RoomID `json:"roomId"`
}

func (UserStoppedTyping) Name() Type { return UserStoppedTypingType }

type MessageHistory struct {
	RoomID   domain.RoomID    `json:"roomId"`
	Messages []domain.Message `json:"messages"`
	Cursor   *string          `json:"cursor,omitempty"`
}

func (MessageHistory) Name() Type { return MessageHistoryType }

type RoomList struct {
	Rooms []domain.Room `json:"rooms"`
}

func (RoomList) Name() Type { return RoomListType }

type RoomCreated struct {
	Room domain.Room `json:"room"`
}

func (RoomCreated) Name() Type { return RoomCreatedType }

// MemberAdded confirms a persisted membership to the member who added it.
type MemberAdded struct {
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
}

func (MemberAdded) Name() Type { return MemberAddedType }

// AddedToRoom tells every live connection of the new member about the room.
type AddedToRoom struct {
	Room domain.Room `json:"room"`
}

func (AddedToRoom) Name() Type { return AddedToRoomType }

// Error is connection scoped and never broadcast.
type Error struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

func (Error) Name() Type { return ErrorType }

type Pong struct{}

func (Pong) Name() Type { return PongType }
