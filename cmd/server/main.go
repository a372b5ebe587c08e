package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"chat-relay/auth"
	"chat-relay/domain/event"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/projection"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/server"
	"chat-relay/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and manages the lifecycle. Errors bubble back
// here so defers (database and index close) always execute before exit.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := internal.GetLoggerFromString(config.LogLevel)

	replacement, err := internal.CharacterRune(config.ModerationReplacement)
	if err != nil {
		return err
	}

	// 2. Storage (BadgerDB) & full-text index (Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	search, err := repositories.NewSearchRepository(config.BlugeFilepath)
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = search.Close()
	}()

	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	roomRepository := repositories.NewRoomRepository(db)
	userRepository := repositories.NewUserRepository(db)

	// 3. Moderation
	censored, err := moderation.LoadCensoredWords()
	if err != nil {
		return fmt.Errorf("loading censored words: %w", err)
	}
	moderator, err := moderation.NewModerator(censored.Words, replacement)
	if err != nil {
		return fmt.Errorf("building moderator: %w", err)
	}
	log.Info("Moderation ready", "words", len(censored.Words), "languages", censored.Languages)

	// 4. Realtime core
	monitoring := observability.NewMonitoring()
	registry := runtime.NewRegistry()
	timeline := projection.NewTimeline(config.TimelineDepth)

	broadcaster := runtime.NewBroadcaster(log, registry, monitoring, config.SinkTimeout)
	broadcaster.Add(timeline)

	indexEvents := make(chan event.DomainEvent, config.BufferSize)
	telemetryEvents := make(chan event.DomainEvent, config.BufferSize)

	pipeline := runtime.NewPipeline(log, roomRepository, messageRepository,
		broadcaster, &moderator, monitoring, indexEvents, telemetryEvents,
		config.MaxContentLength)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Background workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewIndexWorker(search, indexEvents, log),
		workers.NewTelemetryWorker(log, telemetryEvents, config.LatencyThreshold),
	)
	sup.Run(ctx)

	// 7. Services & gateway
	tokens := auth.NewTokenManager([]byte(config.AuthSecret), config.AuthIssuer, config.AuthTokenDuration)
	chatService := services.NewChatService(pipeline, registry, roomRepository,
		messageRepository, search, timeline)
	userService := services.NewUserService(userRepository)
	authService := services.NewAuthService(userRepository, tokens)

	srv := server.New(log, server.Config{
		Addr:                 fmt.Sprintf("%s:%d", config.Host, config.Port),
		AllowedOrigins:       strings.Split(config.AllowedOrigins, ","),
		ConnectionBufferSize: config.ConnectionBufferSize,
	}, chatService, userService, authService, tokens, monitoring)

	if config.DebugPort > 0 {
		internal.StartDebugServer(db, config.DebugPort, nil, monitoring.Snapshot)
		log.Info("Debug server started", "port", config.DebugPort)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown", "error", err)
	}
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
