package domain

import (
	"chat-relay/errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Command interface {
	RoomID() RoomID
}

// PostMessageCommand is the intent of a subscribed connection to send a message.
// ConnectionID identifies the sender so that persistence failures reach it only.
type PostMessageCommand struct {
	Room         RoomID       `validate:"required"`
	Author       Identity     `validate:"-"`
	ConnectionID ConnectionID `validate:"-"`
	Content      string       `validate:"required,max=1000"`
	Type         MessageType  `validate:"oneof=text image file"`
}

func (p PostMessageCommand) RoomID() RoomID {
	return p.Room
}

// Normalize trims the content and defaults the type, then validates the result.
func (p PostMessageCommand) Normalize() (PostMessageCommand, error) {
	p.Content = strings.TrimSpace(p.Content)
	if p.Type == "" {
		p.Type = TextMessage
	}
	if p.Content == "" {
		return p, errors.ErrEmptyContent
	}
	if err := validate.Struct(p); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) && len(vErrs) > 0 && vErrs[0].Field() == "Content" {
			return p, errors.ErrContentTooLong
		}
		return p, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return p, nil
}

type CreateRoomCommand struct {
	Name        string `validate:"required,max=50"`
	Description string `validate:"max=500"`
	Private     bool
	MaxUsers    int `validate:"gte=0,lte=10000"`
	Creator     Identity
}

func (c CreateRoomCommand) Normalize() (CreateRoomCommand, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.MaxUsers == 0 {
		c.MaxUsers = DefaultMaxUsers
	}
	if err := validate.Struct(c); err != nil {
		return c, fmt.Errorf("%w: %v", errors.ErrInvalidRoomName, err)
	}
	return c, nil
}

type GetMessagesCommand struct {
	Room   RoomID
	Cursor *string
}

func (g GetMessagesCommand) RoomID() RoomID {
	return g.Room
}
