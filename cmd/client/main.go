// Command client is a terminal front end of the relay.
// Lines starting with a slash are commands, anything else is sent to the active room.
package main

import (
	"bufio"
	"chat-relay/auth"
	"chat-relay/client"
	"chat-relay/domain"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	ServerURL string `envconfig:"CHAT_SERVER_URL" default:"ws://localhost:8080/ws"`
	Token     string `envconfig:"CHAT_TOKEN" required:"true"`
	Room      string `envconfig:"CHAT_ROOM" default:"General"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"WARN"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	selfID, err := auth.SubjectOf(config.Token)
	if err != nil {
		return exitConfig, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := client.Dial(ctx, log, config.ServerURL, config.Token)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerURL, err)
	}
	defer func() { _ = conn.Close() }()

	screen := newView(os.Stdout, selfID, config.Room)
	synchronizer := client.NewSynchronizer(log, domain.Identity{ID: selfID}, conn,
		client.WithOnChange(screen.render))
	screen.dispatch = func(in client.Input) {
		_ = synchronizer.Dispatch(ctx, in)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = synchronizer.Run(ctx) }()

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- conn.Listen(ctx, synchronizer)
		cancel()
	}()

	screen.dispatch(client.RefreshRooms{})
	screen.banner(config.ServerURL)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			select {
			case err := <-listenErr:
				if err != nil {
					return exitRuntime, err
				}
			default:
			}
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if quit := screen.handleLine(strings.TrimSpace(line), synchronizer.State()); quit {
				return exitOK, nil
			}
		}
	}
}
