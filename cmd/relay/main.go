package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"chat-relay/auth"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
	relayruntime "chat-relay/runtime"
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

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting. Keeping main() trivial ensures every defer
// (database close, worker drain) executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := internal.GetLoggerFromString(config.LogLevel)

	maskRune := []rune(config.MaskCharacter)
	if len(maskRune) != 1 {
		return fmt.Errorf("MASK_CHARACTER must be a single character, got %q", config.MaskCharacter)
	}

	// 2. Storage (BadgerDB) & search index (Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = blugeWriter.Close()
	}()

	// 3. Relay assembly
	moderator, err := moderation.NewEmbeddedModerator(maskRune[0])
	if err != nil {
		return fmt.Errorf("failed to build moderator: %w", err)
	}

	monitoring := observability.NewMonitoringManager(log)
	registry := relayruntime.NewRegistry()
	messageRepository := repositories.NewMessageRepository(db, log)
	searchIndex := repositories.NewSearchIndex(blugeWriter, log)
	relayService := services.NewRelayService(log, registry, messageRepository,
		searchIndex, moderator, monitoring, config.HistoryLimit)

	// 4. Supervision
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewLivenessWorker(log, registry, config.LivenessInterval, monitoring))
	sup.Add(workers.NewTelemetryWorker(log, config.TelemetryInterval, monitoring))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisorDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supervisorDone)
	}()

	// 5. HTTP & websocket surface
	verifier := auth.NewVerifier(config.AuthSecret)
	handler := server.NewHandler(log, relayService, registry, monitoring,
		config.ConnectionBacklog, config.WriteTimeout)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler: server.NewServer(log, relayService, handler, verifier, monitoring).Router(),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting relay server", "address", srv.Addr, "auth_enabled", verifier.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 6. Wait for stop or error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 7. Final cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	sup.Stop()
	<-supervisorDone
	log.Info("Relay stopped cleanly")

	return nil
}
