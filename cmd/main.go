package main

import (
	"chat-relay/auth"
	admin "chat-relay/infrastructure/grpc"
	"chat-relay/infrastructure/ws"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and owns their lifecycle, so that deferred cleanups
// (store, sequence lease) always run before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	userRepository := repositories.NewUserRepository(db)
	roomRepository := repositories.NewRoomRepository(db)
	messageRepository, err := repositories.NewMessageRepository(db, log, &config.LimitMessages)
	if err != nil {
		return fmt.Errorf("message store: %w", err)
	}
	// Registered after the database close so that it runs first.
	defer func() {
		if err := messageRepository.Close(); err != nil {
			log.Warn("Unable to release message sequence", "error", err)
		}
	}()

	// 3. Supervision & Orchestration
	sup := workers.NewSupervisor(log, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(log, sup,
		userRepository, roomRepository, messageRepository,
		config.NumberOfWorkers, config.BufferSize, config.SinkTimeout, config.HeartbeatInterval)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("orchestrator failed to start: %w", err)
	}

	// 5. Admin gRPC health
	adminAddress := fmt.Sprintf("%s:%d", config.Host, config.AdminPort)
	adminListener, err := net.Listen("tcp", adminAddress)
	if err != nil {
		orchestrator.Stop()
		return fmt.Errorf("failed to listen on %s: %w", adminAddress, err)
	}
	adminServer := admin.NewAdminServer(log)

	// 6. Websocket relay
	tokens := auth.NewJWTManager(config.JWTSecret, config.AuthTokenDuration)
	verifier := auth.NewVerifier(tokens, userRepository, log)
	router := ws.SetupRouter(log, config.GinMode, verifier, services.NewChatService(orchestrator), ws.Config{
		ConnectionBufferSize: config.ConnectionBufferSize,
		MaxMessageSize:       config.MaxMessageSize,
		PingPeriod:           config.PingPeriod,
	})
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	errChan := make(chan error, 2)
	go func() {
		if err := adminServer.Serve(adminListener); err != nil {
			errChan <- fmt.Errorf("admin server error: %w", err)
		}
	}()
	go func() {
		log.Info("Starting websocket relay", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()
	adminServer.SetServing()

	// 7. Wait for Stop or Error
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case runErr = <-errChan:
		log.Error("Server failed", "error", runErr)
	}

	// 8. Final Cleanup
	adminServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	orchestrator.Stop()
	log.Info("Program stopped cleanly")

	return runErr
}
