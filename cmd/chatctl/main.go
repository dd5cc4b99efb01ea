// chatctl is a small demonstration of the chat core against the
// embedded record store: it opens a direct conversation between two
// local sessions, streams one user's channel events, and reads messages
// typed on stdin as the other user.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"chatkit/internal"
	"chatkit/repositories"
	"chatkit/services"
	"chatkit/sink"
	"chatkit/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and centralizes error reporting, so
// deferred cleanups (database close, session teardown) always execute.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := internal.NewLogger(config.LogLevel)

	// 2. Database (BadgerDB) & transport
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	broker := transport.NewBroker()
	store := repositories.NewRecordStore(db, log)
	store.SetNotifier(sink.NewChannelFanout(store, broker, log))

	// 3. Sessions
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	me := services.NewSession(store, broker, log, config.UserID)
	peer := services.NewSession(store, broker, log, config.PeerID)
	defer me.Logout()
	defer peer.Logout()

	cancel, err := peer.Channel.Subscribe(ctx, func(payload map[string]any) {
		log.Info("channel event", "user", peer.UserID, "payload", payload)
	})
	if err != nil {
		return fmt.Errorf("subscribing %s: %w", peer.UserID, err)
	}
	defer cancel()

	conversation, err := me.Conversations.CreateDirect(ctx, config.PeerID, "", nil)
	if err != nil {
		return fmt.Errorf("opening direct conversation: %w", err)
	}
	log.Info("Direct conversation ready", "id", conversation.ID, "participants", conversation.ParticipantIDs)

	// 4. Read stdin until EOF or signal
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Shutting down gracefully...")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			message, err := me.Messages.Send(ctx, conversation, line, nil)
			if err != nil {
				log.Error("send failed", "error", err)
				continue
			}
			counts, err := peer.Receipts.FetchTotalUnreadCount(ctx)
			if err != nil {
				log.Error("unread query failed", "error", err)
				continue
			}
			log.Info("Message sent", "id", message.ID, "peer_unread", counts)
		}
	}
}
