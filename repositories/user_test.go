package repositories

import (
	"chat-relay/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Create_And_Get_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))

	user, err := repository.CreateUser("alice", "Alice@Example.com", "hash", "avatar.png")
	req.NoError(err)
	req.NotEmpty(user.ID)
	req.Equal("alice@example.com", user.Email)

	fetched, err := repository.GetUser(user.ID)
	req.NoError(err)
	req.Equal(user.Identity(), fetched.Identity())
	req.Equal("hash", fetched.PasswordHash)

	byEmail, err := repository.GetUserByEmail("alice@example.com")
	req.NoError(err)
	req.Equal(user.ID, byEmail.ID)
}

func Test_Create_User_With_Taken_Email(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))

	_, err := repository.CreateUser("alice", "alice@example.com", "hash", "")
	req.NoError(err)
	_, err = repository.CreateUser("alice2", "ALICE@example.com", "hash", "")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_Unknown_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))

	_, err := repository.GetUser("missing")
	req.ErrorIs(err, errors.ErrUserNotFound)
	_, err = repository.GetUserByEmail("nobody@example.com")
	req.ErrorIs(err, errors.ErrUserNotFound)
	req.ErrorIs(repository.UpdateLastSeen("missing", time.Now()), errors.ErrUserNotFound)
}

func Test_Update_Last_Seen(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))
	user, err := repository.CreateUser("alice", "alice@example.com", "hash", "")
	req.NoError(err)

	at := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	req.NoError(repository.UpdateLastSeen(user.ID, at))

	fetched, err := repository.GetUser(user.ID)
	req.NoError(err)
	req.True(at.Equal(fetched.LastSeen))
}
