//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IRoomRepository interface {
	CreateRoom(cmd domain.CreateRoomCommand) (domain.Room, error)
	GetRoom(id domain.RoomID) (domain.Room, error)
	ListRooms(viewer domain.UserID) ([]domain.Room, error)
	AddMember(roomID domain.RoomID, userID domain.UserID) error
	IsMember(userID domain.UserID, roomID domain.RoomID) (bool, error)
	Touch(roomID domain.RoomID, at time.Time) error
}

type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) IRoomRepository {
	return &RoomRepository{db: db}
}

// diskRoom holds the room record. Members live under their own keys
// so that joining never rewrites the room.
type diskRoom struct {
	ID           string    `cbor:"1,keyasint"`
	Name         string    `cbor:"2,keyasint"`
	Description  string    `cbor:"3,keyasint"`
	Private      bool      `cbor:"4,keyasint"`
	MaxUsers     int       `cbor:"5,keyasint"`
	CreatedBy    string    `cbor:"6,keyasint"`
	CreatedAt    time.Time `cbor:"7,keyasint"`
	LastActivity time.Time `cbor:"8,keyasint"`
}

const roomPrefix = "room:"

func roomKey(id domain.RoomID) []byte {
	return []byte(roomPrefix + string(id))
}

func roomNameKey(name string) []byte {
	return []byte("room_name:" + strings.ToLower(name))
}

func memberPrefix(roomID domain.RoomID) string {
	return fmt.Sprintf("member:%s:", roomID)
}

func memberKey(roomID domain.RoomID, userID domain.UserID) []byte {
	return []byte(memberPrefix(roomID) + string(userID))
}

// CreateRoom stores the room and records its creator as the first member.
// Room names are unique, case insensitive.
func (r *RoomRepository) CreateRoom(cmd domain.CreateRoomCommand) (domain.Room, error) {
	now := time.Now().UTC()
	room := domain.Room{
		ID:           domain.RoomID(uuid.NewString()),
		Name:         cmd.Name,
		Description:  cmd.Description,
		Private:      cmd.Private,
		MaxUsers:     cmd.MaxUsers,
		CreatedBy:    cmd.Creator.ID,
		CreatedAt:    now,
		LastActivity: now,
	}
	if cmd.Creator.ID != "" {
		room.Members = []domain.UserID{cmd.Creator.ID}
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomNameKey(room.Name)); err == nil {
			return errors.ErrRoomAlreadyExists
		}
		if err := txn.Set(roomNameKey(room.Name), []byte(room.ID)); err != nil {
			return err
		}
		if err := writeValue(txn, roomKey(room.ID), fromRoom(room)); err != nil {
			return err
		}
		for _, member := range room.Members {
			if err := txn.Set(memberKey(room.ID, member), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Room{}, translate(err, errors.ErrRoomNotFound)
	}
	return room, nil
}

func (r *RoomRepository) GetRoom(id domain.RoomID) (domain.Room, error) {
	var room domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		room, err = loadRoom(txn, id)
		return err
	})
	if err != nil {
		return domain.Room{}, translate(err, errors.ErrRoomNotFound)
	}
	return room, nil
}

// ListRooms returns the rooms visible to viewer: every public room plus the
// private rooms it belongs to, most recently active first.
func (r *RoomRepository) ListRooms(viewer domain.UserID) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(roomPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		var ids []domain.RoomID
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, domain.RoomID(it.Item().Key()[len(prefix):]))
		}
		for _, id := range ids {
			room, err := loadRoom(txn, id)
			if err != nil {
				return err
			}
			if room.CanSubscribe(viewer) {
				rooms = append(rooms, room)
			}
		}
		return nil
	})
	if err != nil {
		return nil, translate(err, errors.ErrRoomNotFound)
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].LastActivity.After(rooms[j].LastActivity)
	})
	return rooms, nil
}

// AddMember records a persisted membership. Adding an existing member is a no-op.
func (r *RoomRepository) AddMember(roomID domain.RoomID, userID domain.UserID) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(roomID)); err != nil {
			return err
		}
		return txn.Set(memberKey(roomID, userID), nil)
	})
	return translate(err, errors.ErrRoomNotFound)
}

func (r *RoomRepository) IsMember(userID domain.UserID, roomID domain.RoomID) (bool, error) {
	member := false
	err := r.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(roomID)); err != nil {
			return err
		}
		_, err := txn.Get(memberKey(roomID, userID))
		switch {
		case err == nil:
			member = true
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return false, translate(err, errors.ErrRoomNotFound)
	}
	return member, nil
}

// Touch bumps the last activity of a room. Older timestamps are ignored.
func (r *RoomRepository) Touch(roomID domain.RoomID, at time.Time) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		var dr diskRoom
		if err := readValue(txn, roomKey(roomID), &dr); err != nil {
			return err
		}
		if !at.After(dr.LastActivity) {
			return nil
		}
		dr.LastActivity = at.UTC()
		return writeValue(txn, roomKey(roomID), dr)
	})
	return translate(err, errors.ErrRoomNotFound)
}

func loadRoom(txn *badger.Txn, id domain.RoomID) (domain.Room, error) {
	var dr diskRoom
	if err := readValue(txn, roomKey(id), &dr); err != nil {
		return domain.Room{}, err
	}
	room := toRoom(dr)

	prefixStr := memberPrefix(id)
	prefix := []byte(prefixStr)
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		room.Members = append(room.Members, domain.UserID(it.Item().Key()[len(prefix):]))
	}
	return room, nil
}

func fromRoom(room domain.Room) diskRoom {
	return diskRoom{
		ID:           string(room.ID),
		Name:         room.Name,
		Description:  room.Description,
		Private:      room.Private,
		MaxUsers:     room.MaxUsers,
		CreatedBy:    string(room.CreatedBy),
		CreatedAt:    room.CreatedAt,
		LastActivity: room.LastActivity,
	}
}

func toRoom(dr diskRoom) domain.Room {
	return domain.Room{
		ID:           domain.RoomID(dr.ID),
		Name:         dr.Name,
		Description:  dr.Description,
		Private:      dr.Private,
		MaxUsers:     dr.MaxUsers,
		CreatedBy:    domain.UserID(dr.CreatedBy),
		CreatedAt:    dr.CreatedAt.UTC(),
		LastActivity: dr.LastActivity.UTC(),
	}
}
