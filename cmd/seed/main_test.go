package main

import (
	"chat-relay/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseUsers(t *testing.T) {
	req := require.New(t)

	users, err := parseUsers(" alice:alice@example.com:correct horse battery , bob:bob@example.com:a:b:c ,")
	req.NoError(err)
	req.Equal([]seedUser{
		{username: "alice", email: "alice@example.com", password: "correct horse battery"},
		{username: "bob", email: "bob@example.com", password: "a:b:c"},
	}, users)

	users, err = parseUsers("")
	req.NoError(err)
	req.Empty(users)

	_, err = parseUsers("alice@example.com")
	req.ErrorIs(err, errors.ErrValidation)
}
