package services

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestChatService_Handle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	coordinator := mocks.NewMockICoordinator(ctrl)
	svc := NewChatService(coordinator)
	ctx := context.Background()
	connID := domain.ConnectionID("c1")

	t.Run("join is forwarded without reply", func(t *testing.T) {
		req := require.New(t)
		coordinator.EXPECT().JoinRoom(ctx, connID, domain.RoomID("r1")).Return(nil)

		reply, err := svc.Handle(ctx, connID, event.JoinRoom{RoomID: "r1"})

		req.NoError(err)
		req.Nil(reply)
	})

	t.Run("join failure is returned", func(t *testing.T) {
		req := require.New(t)
		coordinator.EXPECT().JoinRoom(ctx, connID, domain.RoomID("secret")).Return(errors.ErrPrivateRoom)

		_, err := svc.Handle(ctx, connID, event.JoinRoom{RoomID: "secret"})

		req.ErrorIs(err, errors.ErrForbidden)
	})

	t.Run("send becomes a post command of the connection", func(t *testing.T) {
		req := require.New(t)
		coordinator.EXPECT().PostMessage(ctx, domain.PostMessageCommand{
			Room: "r1", ConnectionID: connID, Content: "hello", Type: domain.TextMessage,
		}).Return(nil)

		reply, err := svc.Handle(ctx, connID, event.SendMessage{RoomID: "r1", Content: "hello", Type: domain.TextMessage})

		req.NoError(err)
		req.Nil(reply)
	})

	t.Run("typing start and stop", func(t *testing.T) {
		req := require.New(t)
		gomock.InOrder(
			coordinator.EXPECT().Typing(ctx, connID, domain.RoomID("r1"), true).Return(nil),
			coordinator.EXPECT().Typing(ctx, connID, domain.RoomID("r1"), false).Return(nil),
		)

		_, err := svc.Handle(ctx, connID, event.Typing{RoomID: "r1"})
		req.NoError(err)
		_, err = svc.Handle(ctx, connID, event.StopTyping{RoomID: "r1"})
		req.NoError(err)
	})

	t.Run("history is a reply", func(t *testing.T) {
		req := require.New(t)
		history := event.MessageHistory{RoomID: "r1", Messages: []domain.Message{{Content: "hi"}}}
		coordinator.EXPECT().GetMessages(ctx, connID, domain.GetMessagesCommand{Room: "r1"}).Return(history, nil)

		reply, err := svc.Handle(ctx, connID, event.GetMessages{RoomID: "r1"})

		req.NoError(err)
		req.Equal(history, reply)
	})

	t.Run("room list and creation", func(t *testing.T) {
		req := require.New(t)
		room := domain.Room{ID: "r2", Name: "Tech Talk"}
		coordinator.EXPECT().ListRooms(ctx, connID).Return([]domain.Room{room}, nil)
		coordinator.EXPECT().CreateRoom(ctx, connID, domain.CreateRoomCommand{Name: "Tech Talk"}).Return(room, nil)

		reply, err := svc.Handle(ctx, connID, event.ListRooms{})
		req.NoError(err)
		req.Equal(event.RoomList{Rooms: []domain.Room{room}}, reply)

		reply, err = svc.Handle(ctx, connID, event.CreateRoom{RoomName: "Tech Talk"})
		req.NoError(err)
		req.Equal(event.RoomCreated{Room: room}, reply)
	})

	t.Run("add member replies with the new membership", func(t *testing.T) {
		req := require.New(t)
		coordinator.EXPECT().AddMember(ctx, connID, domain.RoomID("secret"), domain.UserID("u2")).
			Return(domain.Room{ID: "secret", Members: []domain.UserID{"u1", "u2"}}, nil)
		coordinator.EXPECT().AddMember(ctx, connID, domain.RoomID("secret"), domain.UserID("u3")).
			Return(domain.Room{}, errors.ErrNotRoomMember)

		reply, err := svc.Handle(ctx, connID, event.AddMember{RoomID: "secret", UserID: "u2"})
		req.NoError(err)
		req.Equal(event.MemberAdded{RoomID: "secret", UserID: "u2"}, reply)

		_, err = svc.Handle(ctx, connID, event.AddMember{RoomID: "secret", UserID: "u3"})
		req.ErrorIs(err, errors.ErrForbidden)
	})

	t.Run("online users and ping", func(t *testing.T) {
		req := require.New(t)
		online := []domain.Identity{{ID: "u1", Username: "alice"}}
		coordinator.EXPECT().OnlineUsers().Return(online)

		reply, err := svc.Handle(ctx, connID, event.GetOnlineUsers{})
		req.NoError(err)
		req.Equal(event.OnlineUsers(online), reply)

		reply, err = svc.Handle(ctx, connID, event.Ping{})
		req.NoError(err)
		req.Equal(event.Pong{}, reply)
	})
}
