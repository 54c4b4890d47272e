package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/repositories"
	"context"
	"log/slog"
)

var _ contract.MessageRelayer = (*MessageRelay)(nil)

// MessageRelay persists a message, then broadcasts the durable record to the room.
// Nothing is broadcast when persistence fails.
type MessageRelay struct {
	messages   repositories.IMessageRepository
	rooms      repositories.IRoomRepository
	membership *MembershipTracker
	log        *slog.Logger
}

func NewMessageRelay(messages repositories.IMessageRepository, rooms repositories.IRoomRepository,
	membership *MembershipTracker, log *slog.Logger) *MessageRelay {
	return &MessageRelay{messages: messages, rooms: rooms, membership: membership, log: log}
}

// Relay expects a normalized command. The sender is part of the broadcast.
func (r *MessageRelay) Relay(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error) {
	message, err := r.messages.CreateMessage(cmd.Room, cmd.Author, cmd.Content, cmd.Type)
	if err != nil {
		return domain.Message{}, err
	}

	result := r.membership.Broadcast(ctx, cmd.Room, event.MessagePosted{Message: message}, "")
	r.log.Debug("Message relayed",
		"room_id", cmd.Room,
		"message_id", message.ID,
		"delivered", result.Delivered,
		"dropped", len(result.Dropped))

	if err := r.rooms.Touch(cmd.Room, message.CreatedAt); err != nil {
		r.log.Warn("Unable to bump room activity", "room_id", cmd.Room, "error", err)
	}
	return message, nil
}
