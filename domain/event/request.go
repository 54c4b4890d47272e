package event

import "chat-relay/domain"

// Client to server.
const (
	JoinRoomType       Type = "joinRoom"
	LeaveRoomType      Type = "leaveRoom"
	SendMessageType    Type = "sendMessage"
	TypingType         Type = "typing"
	StopTypingType     Type = "stopTyping"
	GetMessagesType    Type = "getMessages"
	ListRoomsType      Type = "listRooms"
	CreateRoomType     Type = "createRoom"
	AddMemberType      Type = "addMember"
	GetOnlineUsersType Type = "getOnlineUsers"
	PingType           Type = "ping"
)

type Request interface {
	Name() Type
}

// JoinRoom accepts both `"room-id"` and `{"roomId": "room-id"}` payloads.
type JoinRoom struct {
	RoomID domain.RoomID `json:"roomId"`
}

func (JoinRoom) Name() Type { return JoinRoomType }

type LeaveRoom struct {
	RoomID domain.RoomID `json:"roomId"`
}

func (LeaveRoom) Name() Type { return LeaveRoomType }

type SendMessage struct {
	RoomID  domain.RoomID      `json:"roomId"`
	Content string             `json:"content"`
	Type    domain.MessageType `json:"type,omitempty"`
}

func (SendMessage) Name() Type { return SendMessageType }

type Typing struct {
	RoomID domain.RoomID `json:"roomId"`
}

func (Typing) Name() Type { return TypingType }

type StopTyping struct {
	RoomID domain.RoomID `json:"roomId"`
}

func (StopTyping) Name() Type { return StopTypingType }

type GetMessages struct {
	RoomID domain.RoomID `json:"roomId"`
	Cursor *string       `json:"cursor,omitempty"`
}

func (GetMessages) Name() Type { return GetMessagesType }

type ListRooms struct{}

func (ListRooms) Name() Type { return ListRoomsType }

type CreateRoom struct {
	RoomName    string `json:"name"`
	Description string `json:"description,omitempty"`
	Private     bool   `json:"isPrivate"`
	MaxUsers    int    `json:"maxUsers,omitempty"`
}

func (CreateRoom) Name() Type { return CreateRoomType }

// AddMember persists userId as a member of roomId. Only members may add members.
type AddMember struct {
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
}

func (AddMember) Name() Type { return AddMemberType }

type GetOnlineUsers struct{}

func (GetOnlineUsers) Name() Type { return GetOnlineUsersType }

type Ping struct{}

func (Ping) Name() Type { return PingType }
