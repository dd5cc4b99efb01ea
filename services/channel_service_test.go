package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"chatkit/projection"
	"chatkit/repositories"
	"chatkit/sink"
	"chatkit/transport"
)

func TestChannelService_GetOrCreate(t *testing.T) {
	req := require.New(t)
	store := newStore(t)
	broker := transport.NewBroker()
	ctx := context.Background()

	service := NewChannelService(store, broker, nil, slog.Default(), "alice")

	first, err := service.GetOrCreate(ctx)
	req.NoError(err)
	req.NotEmpty(first.Name)

	second, err := service.GetOrCreate(ctx)
	req.NoError(err)
	req.Equal(first.Name, second.Name)

	other, err := NewChannelService(store, broker, nil, slog.Default(), "bob").GetOrCreate(ctx)
	req.NoError(err)
	req.NotEqual(first.Name, other.Name)
}

// End to end through the reference backend: a message saved by one
// session reaches the other session's projection via its channel.
func TestChannelService_RoutesEventsIntoProjection(t *testing.T) {
	req := require.New(t)
	store := newStore(t, repositories.WithClock(tickingClock()))
	broker := transport.NewBroker()
	store.SetNotifier(sink.NewChannelFanout(store, broker, slog.Default()))
	ctx := context.Background()

	bobState := projection.NewState("bob")
	bobChannel := NewChannelService(store, broker, bobState, slog.Default(), "bob")

	var received []map[string]any
	cancel, err := bobChannel.Subscribe(ctx, func(payload map[string]any) {
		received = append(received, payload)
	})
	req.NoError(err)
	defer cancel()

	conversation := newConversation(t, store, "alice", "bob")
	message := sendAs(t, store, "alice", conversation, "ping")

	req.NotEmpty(received)
	req.Equal(1, bobState.UnreadCount(conversation.ID))
	timeline := bobState.Timeline(conversation.ID)
	req.Len(timeline, 1)
	req.Equal(message.ID, timeline[0].ID)

	t.Run("should apply a duplicated event only once", func(t *testing.T) {
		req := require.New(t)
		req.NoError(broker.Publish(ctx, mustChannelName(t, bobChannel), received[len(received)-1]))
		req.Equal(1, bobState.UnreadCount(conversation.ID))
	})

	t.Run("should stop routing after logout", func(t *testing.T) {
		req := require.New(t)
		seen := len(received)
		bobChannel.Close()
		sendAs(t, store, "alice", conversation, "pong")
		req.Len(received, seen)
	})
}

func mustChannelName(t *testing.T, service *ChannelService) string {
	t.Helper()
	channel, err := service.GetOrCreate(context.Background())
	require.NoError(t, err)
	return channel.Name
}

