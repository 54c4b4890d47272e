package event

import (
	"bytes"
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/json"
	"fmt"
)

// Envelope is the frame of every JSON message on the wire.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type named interface {
	Name() Type
}

// Encode wraps an event or a request into its envelope.
func Encode(v named) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: v.Name(), Payload: payload})
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return env, nil
}

// DecodeRequest parses a client frame.
func DecodeRequest(data []byte) (Request, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	var req Request
	switch env.Type {
	case JoinRoomType:
		var r JoinRoom
		err = unmarshalRoomRef(env.Payload, &r.RoomID)
		req = r
	case LeaveRoomType:
		var r LeaveRoom
		err = unmarshalRoomRef(env.Payload, &r.RoomID)
		req = r
	case SendMessageType:
		req, err = unmarshalAs[SendMessage](env.Payload)
	case TypingType:
		var r Typing
		err = unmarshalRoomRef(env.Payload, &r.RoomID)
		req = r
	case StopTypingType:
		var r StopTyping
		err = unmarshalRoomRef(env.Payload, &r.RoomID)
		req = r
	case GetMessagesType:
		req, err = unmarshalAs[GetMessages](env.Payload)
	case ListRoomsType:
		req = ListRooms{}
	case CreateRoomType:
		req, err = unmarshalAs[CreateRoom](env.Payload)
	case AddMemberType:
		req, err = unmarshalAs[AddMember](env.Payload)
	case GetOnlineUsersType:
		req = GetOnlineUsers{}
	case PingType:
		req = Ping{}
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEventType, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return req, nil
}

// DecodeEvent parses a server frame.
func DecodeEvent(data []byte) (DomainEvent, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	var evt DomainEvent
	switch env.Type {
	case NewMessageType:
		evt, err = unmarshalAs[MessagePosted](env.Payload)
	case UserOnlineType:
		evt, err = unmarshalAs[UserOnline](env.Payload)
	case UserOfflineType:
		evt, err = unmarshalAs[UserOffline](env.Payload)
	case OnlineUsersType:
		evt, err = unmarshalAs[OnlineUsers](env.Payload)
	case UserJoinedRoomType:
		evt, err = unmarshalAs[UserJoinedRoom](env.Payload)
	case UserLeftRoomType:
		evt, err = unmarshalAs[UserLeftRoom](env.Payload)
	case UserTypingType:
		evt, err = unmarshalAs[UserTyping](env.Payload)
	case UserStoppedTypingType:
		evt, err = unmarshalAs[UserStoppedTyping](env.Payload)
	case MessageHistoryType:
		evt, err = unmarshalAs[MessageHistory](env.Payload)
	case RoomListType:
		evt, err = unmarshalAs[RoomList](env.Payload)
	case RoomCreatedType:
		evt, err = unmarshalAs[RoomCreated](env.Payload)
	case MemberAddedType:
		evt, err = unmarshalAs[MemberAdded](env.Payload)
	case AddedToRoomType:
		evt, err = unmarshalAs[AddedToRoom](env.Payload)
	case ErrorType:
		evt, err = unmarshalError(env.Payload)
	case PongType:
		evt = Pong{}
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEventType, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return evt, nil
}

func unmarshalAs[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, nil
	}
	err := json.Unmarshal(payload, &v)
	return v, err
}

// unmarshalRoomRef accepts either a bare room id string or an object with roomId.
func unmarshalRoomRef(payload json.RawMessage, roomID *domain.RoomID) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, roomID)
	}
	var ref struct {
		RoomID domain.RoomID `json:"roomId"`
	}
	if err := json.Unmarshal(trimmed, &ref); err != nil {
		return err
	}
	*roomID = ref.RoomID
	return nil
}

// unmarshalError accepts both a bare message string and the structured form.
func unmarshalError(payload json.RawMessage) (Error, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var msg string
		err := json.Unmarshal(trimmed, &msg)
		return Error{Message: msg}, err
	}
	return unmarshalAs[Error](trimmed)
}
