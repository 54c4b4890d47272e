package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
)

// TypingRouter relays typing signals to the other subscribers of a room.
// Signals are neither persisted nor acknowledged.
type TypingRouter struct {
	membership *MembershipTracker
}

func NewTypingRouter(membership *MembershipTracker) *TypingRouter {
	return &TypingRouter{membership: membership}
}

func (t *TypingRouter) Signal(ctx context.Context, conn *Connection, roomID domain.RoomID, typing bool) error {
	if !conn.IsSubscribed(roomID) {
		return errors.ErrNotSubscribed
	}
	var evt event.DomainEvent
	if typing {
		evt = event.UserTyping{UserID: conn.Identity.ID, Username: conn.Identity.Username, RoomID: roomID}
	} else {
		evt = event.UserStoppedTyping{UserID: conn.Identity.ID, Username: conn.Identity.Username, RoomID: roomID}
	}
	t.membership.Broadcast(ctx, roomID, evt, conn.ID)
	return nil
}
