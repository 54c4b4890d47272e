// This file defines Participant identities and related invariants.
// No runtime, network, or UI logic should be added here.

package domain

import "time"

type UserID string

// ConnectionID identifies one live transport session of an identity.
type ConnectionID string

// Identity is the stable, resolved reference of a user.
// It is immutable for the lifetime of a connection.
type Identity struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Presence is derived from the number of live connections of an identity.
type Presence struct {
	Identity Identity  `json:"identity"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"lastSeen"`
}
