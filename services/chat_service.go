package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"fmt"
)

// IChatService translates client requests of one connection into coordinator calls.
type IChatService interface {
	Connect(identity domain.Identity, sink contract.EventSink) domain.ConnectionID
	Disconnect(connectionID domain.ConnectionID)
	Handle(ctx context.Context, connectionID domain.ConnectionID, request event.Request) (event.DomainEvent, error)
	OnlineUsers() []domain.Identity
}

type ChatService struct {
	coordinator contract.ICoordinator
}

func NewChatService(coordinator contract.ICoordinator) *ChatService {
	return &ChatService{coordinator: coordinator}
}

func (s *ChatService) Connect(identity domain.Identity, sink contract.EventSink) domain.ConnectionID {
	return s.coordinator.Connect(identity, sink)
}

func (s *ChatService) Disconnect(connectionID domain.ConnectionID) {
	s.coordinator.Disconnect(connectionID)
}

func (s *ChatService) OnlineUsers() []domain.Identity {
	return s.coordinator.OnlineUsers()
}

// Handle runs one request. The returned event, when not nil, is the reply
// addressed to the requesting connection only. Broadcasts happen inside the coordinator.
func (s *ChatService) Handle(ctx context.Context, connectionID domain.ConnectionID, request event.Request) (event.DomainEvent, error) {
	switch r := request.(type) {
	case event.JoinRoom:
		return nil, s.coordinator.JoinRoom(ctx, connectionID, r.RoomID)
	case event.LeaveRoom:
		return nil, s.coordinator.LeaveRoom(ctx, connectionID, r.RoomID)
	case event.SendMessage:
		return nil, s.coordinator.PostMessage(ctx, domain.PostMessageCommand{
			Room:         r.RoomID,
			ConnectionID: connectionID,
			Content:      r.Content,
			Type:         r.Type,
		})
	case event.Typing:
		return nil, s.coordinator.Typing(ctx, connectionID, r.RoomID, true)
	case event.StopTyping:
		return nil, s.coordinator.Typing(ctx, connectionID, r.RoomID, false)
	case event.GetMessages:
		history, err := s.coordinator.GetMessages(ctx, connectionID, domain.GetMessagesCommand{Room: r.RoomID, Cursor: r.Cursor})
		if err != nil {
			return nil, err
		}
		return history, nil
	case event.ListRooms:
		rooms, err := s.coordinator.ListRooms(ctx, connectionID)
		if err != nil {
			return nil, err
		}
		return event.RoomList{Rooms: rooms}, nil
	case event.CreateRoom:
		room, err := s.coordinator.CreateRoom(ctx, connectionID, domain.CreateRoomCommand{
			Name:        r.RoomName,
			Description: r.Description,
			Private:     r.Private,
			MaxUsers:    r.MaxUsers,
		})
		if err != nil {
			return nil, err
		}
		return event.RoomCreated{Room: room}, nil
	case event.AddMember:
		if _, err := s.coordinator.AddMember(ctx, connectionID, r.RoomID, r.UserID); err != nil {
			return nil, err
		}
		return event.MemberAdded{RoomID: r.RoomID, UserID: r.UserID}, nil
	case event.GetOnlineUsers:
		return event.OnlineUsers(s.coordinator.OnlineUsers()), nil
	case event.Ping:
		return event.Pong{}, nil
	default:
		return nil, fmt.Errorf("%w: %T", errors.ErrUnknownEventType, request)
	}
}
