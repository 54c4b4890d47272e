//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	CreateMessage(roomID domain.RoomID, author domain.Identity, content string, messageType domain.MessageType) (domain.Message, error)
	GetMessages(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error)
}

// DefaultLimitMessages is the history page size used when none is configured.
const DefaultLimitMessages = 50

type MessageRepository struct {
	db            *badger.DB
	seq           *badger.Sequence
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:msg"), 100)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	if limitMessages == nil || *limitMessages <= 0 {
		limit := DefaultLimitMessages
		limitMessages = &limit
	}
	return &MessageRepository{db: db, seq: seq, log: log, limitMessages: limitMessages}, nil
}

// Close releases the leased sequence range. It must run before the database is closed.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

type diskMessage struct {
	ID        string    `cbor:"1,keyasint"`
	RoomID    string    `cbor:"2,keyasint"`
	AuthorID  string    `cbor:"3,keyasint"`
	Username  string    `cbor:"4,keyasint"`
	Avatar    string    `cbor:"5,keyasint"`
	Content   string    `cbor:"6,keyasint"`
	Type      string    `cbor:"7,keyasint"`
	CreatedAt int64     `cbor:"8,keyasint"`
	Seq       uint64    `cbor:"9,keyasint"`
	Edited    bool      `cbor:"10,keyasint"`
	EditedAt  time.Time `cbor:"11,keyasint,omitempty"`
}

func messagePrefix(roomID domain.RoomID) string {
	return fmt.Sprintf("msg:%s:", roomID)
}

// CreateMessage assigns the id, creation time and sequence, then persists the message.
// The key is formatted as "msg:{room_id}:{timestamp_padded}:{seq_padded}" so that
// a prefix scan returns creation order, with the insertion sequence breaking ties.
func (m *MessageRepository) CreateMessage(roomID domain.RoomID, author domain.Identity, content string, messageType domain.MessageType) (domain.Message, error) {
	seq, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	message := domain.Message{
		ID:        uuid.New(),
		RoomID:    roomID,
		Author:    author,
		Content:   content,
		Type:      messageType,
		CreatedAt: time.Now().UTC(),
		Seq:       seq,
	}
	key := fmt.Sprintf("%s%019d:%020d", messagePrefix(roomID), message.CreatedAt.UnixNano(), seq)

	err = m.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(roomID)); err != nil {
			return err
		}
		return writeValue(txn, []byte(key), fromMessage(message))
	})
	if err != nil {
		return domain.Message{}, translate(err, errors.ErrRoomNotFound)
	}
	return message, nil
}

// GetMessages walks the room backwards from the cursor (or from the newest message)
// and returns at most limitMessages messages in ascending order.
// The returned cursor is nil once the oldest message has been reached.
func (m *MessageRepository) GetMessages(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastKey string
	hasMore := false
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := messagePrefix(roomID)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Past the newest possible key, then walk back
			seekKey = append([]byte(prefixStr), []byte("9999999999999999999:99999999999999999999")...)
		default:
			seekKey = append([]byte(prefixStr), []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				hasMore = true
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			var dm diskMessage
			if err := readValue(txn, item.KeyCopy(nil), &dm); err != nil {
				return err
			}
			message, err := toMessage(dm)
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, nil, translate(err, errors.ErrRoomNotFound)
	}

	slices.Reverse(messages)
	if !hasMore {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

func fromMessage(message domain.Message) diskMessage {
	dm := diskMessage{
		ID:        message.ID.String(),
		RoomID:    string(message.RoomID),
		AuthorID:  string(message.Author.ID),
		Username:  message.Author.Username,
		Avatar:    message.Author.Avatar,
		Content:   message.Content,
		Type:      string(message.Type),
		CreatedAt: message.CreatedAt.UnixNano(),
		Seq:       message.Seq,
		Edited:    message.Edited,
	}
	if message.EditedAt != nil {
		dm.EditedAt = *message.EditedAt
	}
	return dm
}

func toMessage(dm diskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, err
	}
	message := domain.Message{
		ID:     parsedID,
		RoomID: domain.RoomID(dm.RoomID),
		Author: domain.Identity{
			ID:       domain.UserID(dm.AuthorID),
			Username: dm.Username,
			Avatar:   dm.Avatar,
		},
		Content:   dm.Content,
		Type:      domain.MessageType(dm.Type),
		CreatedAt: time.Unix(0, dm.CreatedAt).UTC(),
		Seq:       dm.Seq,
		Edited:    dm.Edited,
	}
	if dm.Edited {
		editedAt := dm.EditedAt.UTC()
		message.EditedAt = &editedAt
	}
	return message, nil
}
