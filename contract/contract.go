//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the outbound side of one connection.
// Consume only hands the event over: the network write belongs to the
// transport's own goroutine. It must return by the ctx deadline, since
// presence delivers under its ordering lock.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

type IdentityVerifier interface {
	VerifyToken(token string) (domain.Identity, error)
}

// MessageRelayer persists a validated message and broadcasts the durable record.
type MessageRelayer interface {
	Relay(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error)
}

// ErrorReporter delivers a connection-scoped error event.
type ErrorReporter interface {
	ReportError(ctx context.Context, connectionID domain.ConnectionID, err error)
}

type Stats struct {
	Connections int
	Identities  int
	Rooms       int
	Subscribers int
}

type StatsProvider interface {
	Stats() Stats
}

// ICoordinator is the server side surface used by the transport.
type ICoordinator interface {
	Connect(identity domain.Identity, sink EventSink) domain.ConnectionID
	Disconnect(connectionID domain.ConnectionID)
	JoinRoom(ctx context.Context, connectionID domain.ConnectionID, roomID domain.RoomID) error
	LeaveRoom(ctx context.Context, connectionID domain.ConnectionID, roomID domain.RoomID) error
	PostMessage(ctx context.Context, cmd domain.PostMessageCommand) error
	Typing(ctx context.Context, connectionID domain.ConnectionID, roomID domain.RoomID, typing bool) error
	GetMessages(ctx context.Context, connectionID domain.ConnectionID, cmd domain.GetMessagesCommand) (event.MessageHistory, error)
	ListRooms(ctx context.Context, connectionID domain.ConnectionID) ([]domain.Room, error)
	CreateRoom(ctx context.Context, connectionID domain.ConnectionID, cmd domain.CreateRoomCommand) (domain.Room, error)
	AddMember(ctx context.Context, connectionID domain.ConnectionID, roomID domain.RoomID, userID domain.UserID) (domain.Room, error)
	OnlineUsers() []domain.Identity
	Start(ctx context.Context) error
	Stop()
}
