//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(username, email, hashedPassword, avatar string) (User, error)
	GetUser(id domain.UserID) (User, error)
	GetUserByEmail(email string) (User, error)
	UpdateLastSeen(id domain.UserID, at time.Time) error
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is the account record. Only its Identity projection leaves the store layer.
type User struct {
	ID           domain.UserID `cbor:"1,keyasint"`
	Username     string        `cbor:"2,keyasint"`
	Email        string        `cbor:"3,keyasint"`
	PasswordHash string        `cbor:"4,keyasint"`
	Avatar       string        `cbor:"5,keyasint"`
	Roles        []string      `cbor:"6,keyasint"`
	CreatedAt    time.Time     `cbor:"7,keyasint"`
	LastSeen     time.Time     `cbor:"8,keyasint"`
}

func (u User) Identity() domain.Identity {
	return domain.Identity{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}

func userKey(id domain.UserID) []byte {
	return []byte("user:" + string(id))
}

func emailKey(email string) []byte {
	return []byte("user_email:" + strings.ToLower(email))
}

// CreateUser persists a new account and its email index in one transaction.
func (u *UserRepository) CreateUser(username, email, hashedPassword, avatar string) (User, error) {
	user := User{
		ID:           domain.UserID(uuid.NewString()),
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: hashedPassword,
		Avatar:       avatar,
		Roles:        []string{"user"},
		CreatedAt:    time.Now().UTC(),
	}
	err := u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(emailKey(email), []byte(user.ID)); err != nil {
			return err
		}
		return writeValue(txn, userKey(user.ID), user)
	})
	if err != nil {
		if errors.Is(err, errors.ErrUserAlreadyExists) {
			return User{}, err
		}
		return User{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return user, nil
}

func (u *UserRepository) GetUser(id domain.UserID) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		return readValue(txn, userKey(id), &user)
	})
	if err != nil {
		return User{}, translate(err, errors.ErrUserNotFound)
	}
	return user, nil
}

func (u *UserRepository) GetUserByEmail(email string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return readValue(txn, userKey(domain.UserID(id)), &user)
	})
	if err != nil {
		return User{}, translate(err, errors.ErrUserNotFound)
	}
	return user, nil
}

// UpdateLastSeen records the instant an identity went offline.
func (u *UserRepository) UpdateLastSeen(id domain.UserID, at time.Time) error {
	err := u.db.Update(func(txn *badger.Txn) error {
		var user User
		if err := readValue(txn, userKey(id), &user); err != nil {
			return err
		}
		user.LastSeen = at.UTC()
		return writeValue(txn, userKey(id), user)
	})
	if err != nil {
		return translate(err, errors.ErrUserNotFound)
	}
	return nil
}
