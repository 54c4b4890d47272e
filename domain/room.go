package domain

import (
	"time"

	"github.com/samber/lo"
)

type RoomID string

const (
	MaxRoomNameLength = 50
	DefaultMaxUsers   = 100
)

// Room is the persisted broadcast scope.
// Members is the persisted membership, not the live subscription set.
type Room struct {
	ID           RoomID    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Private      bool      `json:"isPrivate"`
	MaxUsers     int       `json:"maxUsers"`
	Members      []UserID  `json:"members,omitempty"`
	CreatedBy    UserID    `json:"createdBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

func (r Room) IsMember(userID UserID) bool {
	return lo.Contains(r.Members, userID)
}

// CanSubscribe reports whether an identity may hold a live subscription.
// Public rooms accept everyone, private rooms only persisted members.
func (r Room) CanSubscribe(userID UserID) bool {
	return !r.Private || r.IsMember(userID)
}
