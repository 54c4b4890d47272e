package errors

import (
	"errors"
	"fmt"
)

// Taxonomy classes. Every error surfaced by the coordinator wraps one of them.
var (
	ErrAuthentication = errors.New("authentication error")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation error")
	ErrPersistence    = errors.New("persistence error")
	ErrTransport      = errors.New("transport error")
)

var (
	ErrMissingToken       = fmt.Errorf("%w: token is missing", ErrAuthentication)
	ErrInvalidToken       = fmt.Errorf("%w: invalid or expired token", ErrAuthentication)
	ErrUnknownIdentity    = fmt.Errorf("%w: identity cannot be resolved", ErrAuthentication)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuthentication)

	ErrPrivateRoom   = fmt.Errorf("%w: room is private", ErrForbidden)
	ErrNotSubscribed = fmt.Errorf("%w: connection is not subscribed to room", ErrForbidden)
	ErrNotRoomMember = fmt.Errorf("%w: only room members can add members", ErrForbidden)
	ErrRoomFull      = fmt.Errorf("%w: room is full", ErrForbidden)

	ErrRoomNotFound = fmt.Errorf("room %w", ErrNotFound)
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

	ErrEmptyContent     = fmt.Errorf("%w: content is empty", ErrValidation)
	ErrContentTooLong   = fmt.Errorf("%w: content is too long", ErrValidation)
	ErrInvalidPayload   = fmt.Errorf("%w: invalid payload", ErrValidation)
	ErrInvalidPassword  = fmt.Errorf("%w: password does not meet requirements", ErrValidation)
	ErrInvalidRoomName  = fmt.Errorf("%w: invalid room name", ErrValidation)
	ErrUnknownEventType = fmt.Errorf("%w: unknown event type", ErrValidation)

	ErrUserAlreadyExists = fmt.Errorf("%w: user already exists", ErrValidation)
	ErrRoomAlreadyExists = fmt.Errorf("%w: room already exists", ErrValidation)
	ErrTokenGeneration   = fmt.Errorf("%w: token generation failed", ErrPersistence)

	ErrBackpressure     = fmt.Errorf("%w: backpressure", ErrTransport)
	ErrConnectionClosed = fmt.Errorf("%w: connection closed", ErrTransport)

	ErrWorkerPanic = errors.New("worker panic")
)

// Kind returns the taxonomy class name of err, "internal" when none matches.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "internal"
	}
}

// ToEventMessage maps err to the text carried by a connection-scoped error event.
// Store internals never leak to the client.
func ToEventMessage(err error) string {
	switch Kind(err) {
	case "persistence":
		return "Storage unavailable, please retry"
	case "internal":
		return "Internal server error"
	default:
		return err.Error()
	}
}

// Is and As re-export the standard helpers so callers need a single import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
