// Command seed creates the default rooms and the accounts listed in SEED_USERS,
// then prints one bearer token per account.
package main

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"chat-relay/services"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

type Config struct {
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	SeedUsers         string        `env:"SEED_USERS"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
}

type seedRoom struct {
	command domain.CreateRoomCommand
	welcome string
}

var defaultRooms = []seedRoom{
	{domain.CreateRoomCommand{Name: "General", Description: "General discussion for everyone", MaxUsers: 100},
		"Welcome to the General chat room! This is where everyone can chat about anything."},
	{domain.CreateRoomCommand{Name: "Random", Description: "Random conversations and off-topic discussions", MaxUsers: 50},
		"Welcome to Random! Feel free to share anything that comes to mind."},
	{domain.CreateRoomCommand{Name: "Tech Talk", Description: "Discussions about technology, programming, and development", MaxUsers: 75},
		"Welcome to Tech Talk! Share your programming knowledge and ask technical questions here."},
	{domain.CreateRoomCommand{Name: "Announcements", Description: "Important announcements and updates", MaxUsers: 200},
		"This is the Announcements channel. Important updates will be posted here."},
}

type seedUser struct {
	username, email, password string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Seed error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	users, err := parseUsers(config.SeedUsers)
	if err != nil {
		return err
	}

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer db.Close()

	userRepository := repositories.NewUserRepository(db)
	roomRepository := repositories.NewRoomRepository(db)
	messageRepository, err := repositories.NewMessageRepository(db, log, nil)
	if err != nil {
		return err
	}
	defer messageRepository.Close()
	authService := services.NewAuthService(userRepository, auth.NewJWTManager(config.JWTSecret, config.AuthTokenDuration))

	// Accounts first: the first one owns the default rooms.
	var owner *domain.Identity
	for _, u := range users {
		user, token, err := register(authService, userRepository, u)
		if err != nil {
			return fmt.Errorf("account %s: %w", u.email, err)
		}
		if owner == nil {
			identity := user.Identity()
			owner = &identity
		}
		fmt.Printf("%s\t%s\t%s\n", user.Username, user.ID, token)
	}

	for _, room := range defaultRooms {
		cmd := room.command
		if owner != nil {
			cmd.Creator = *owner
		}
		created, err := roomRepository.CreateRoom(cmd)
		if errors.Is(err, errors.ErrRoomAlreadyExists) {
			log.Info("Room already seeded", "name", cmd.Name)
			continue
		}
		if err != nil {
			return fmt.Errorf("room %s: %w", cmd.Name, err)
		}
		log.Info("Room seeded", "room_id", created.ID, "name", created.Name)
		if owner != nil {
			if _, err := messageRepository.CreateMessage(created.ID, *owner, room.welcome, domain.TextMessage); err != nil {
				return fmt.Errorf("welcome message for %s: %w", cmd.Name, err)
			}
		}
	}
	return nil
}

// register creates the account, or logs into it when it already exists.
func register(authService services.IAuthService, userRepository repositories.IUserRepository, u seedUser) (repositories.User, services.Token, error) {
	user, token, err := authService.Register(u.username, u.email, u.password)
	if err == nil {
		return user, token, nil
	}
	if !errors.Is(err, errors.ErrUserAlreadyExists) {
		return repositories.User{}, "", err
	}
	token, err = authService.Login(u.email, u.password)
	if err != nil {
		return repositories.User{}, "", err
	}
	user, err = userRepository.GetUserByEmail(u.email)
	return user, token, err
}

// parseUsers reads "username:email:password" entries separated by commas.
func parseUsers(raw string) ([]seedUser, error) {
	var users []seedUser
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: seed user %q must be username:email:password", errors.ErrValidation, entry)
		}
		users = append(users, seedUser{username: parts[0], email: parts[1], password: parts[2]})
	}
	return users, nil
}
