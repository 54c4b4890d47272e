package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func Test_Create_Room_Records_Creator_As_Member(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openDB(t))

	room, err := repository.CreateRoom(domain.CreateRoomCommand{
		Name:     "Secret",
		Private:  true,
		MaxUsers: 10,
		Creator:  domain.Identity{ID: "alice"},
	})
	req.NoError(err)

	fetched, err := repository.GetRoom(room.ID)
	req.NoError(err)
	req.Equal("Secret", fetched.Name)
	req.True(fetched.Private)
	req.Equal([]domain.UserID{"alice"}, fetched.Members)

	member, err := repository.IsMember("alice", room.ID)
	req.NoError(err)
	req.True(member)

	member, err = repository.IsMember("bob", room.ID)
	req.NoError(err)
	req.False(member)
}

func Test_Get_Unknown_Room(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openDB(t))

	_, err := repository.GetRoom("missing")
	req.ErrorIs(err, errors.ErrRoomNotFound)

	_, err = repository.IsMember("alice", "missing")
	req.ErrorIs(err, errors.ErrNotFound)

	req.ErrorIs(repository.AddMember("missing", "alice"), errors.ErrNotFound)
}

func Test_Add_Member_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openDB(t))
	room, err := repository.CreateRoom(domain.CreateRoomCommand{Name: "General"})
	req.NoError(err)

	req.NoError(repository.AddMember(room.ID, "bob"))
	req.NoError(repository.AddMember(room.ID, "bob"))

	fetched, err := repository.GetRoom(room.ID)
	req.NoError(err)
	req.Equal([]domain.UserID{"bob"}, fetched.Members)
}

func Test_List_Rooms_Hides_Foreign_Private_Rooms_And_Sorts_By_Activity(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openDB(t))

	general, err := repository.CreateRoom(domain.CreateRoomCommand{Name: "General"})
	req.NoError(err)
	random, err := repository.CreateRoom(domain.CreateRoomCommand{Name: "Random"})
	req.NoError(err)
	_, err = repository.CreateRoom(domain.CreateRoomCommand{Name: "Secret", Private: true, Creator: domain.Identity{ID: "alice"}})
	req.NoError(err)

	req.NoError(repository.Touch(general.ID, time.Now().Add(time.Hour)))

	rooms, err := repository.ListRooms("bob")
	req.NoError(err)
	req.Equal([]string{"General", "Random"}, lo.Map(rooms, func(r domain.Room, _ int) string { return r.Name }))

	rooms, err = repository.ListRooms("alice")
	req.NoError(err)
	req.Len(rooms, 3)
	req.Equal(general.ID, rooms[0].ID)
	req.Contains(lo.Map(rooms, func(r domain.Room, _ int) domain.RoomID { return r.ID }), random.ID)
}

func Test_Touch_Ignores_Older_Timestamps(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openDB(t))
	room, err := repository.CreateRoom(domain.CreateRoomCommand{Name: "General"})
	req.NoError(err)

	req.NoError(repository.Touch(room.ID, room.LastActivity.Add(-time.Hour)))

	fetched, err := repository.GetRoom(room.ID)
	req.NoError(err)
	req.True(fetched.LastActivity.Equal(room.LastActivity))

	req.ErrorIs(repository.Touch("missing", time.Now()), errors.ErrRoomNotFound)
}

func Test_Room_Names_Are_Unique(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openDB(t))

	_, err := repository.CreateRoom(domain.CreateRoomCommand{Name: "General"})
	req.NoError(err)
	_, err = repository.CreateRoom(domain.CreateRoomCommand{Name: "general"})
	req.ErrorIs(err, errors.ErrRoomAlreadyExists)
	req.ErrorIs(err, errors.ErrValidation)
}
