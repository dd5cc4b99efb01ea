package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"chatkit/domain"
	chaterrors "chatkit/errors"
	"chatkit/repositories"
)

func sendAs(t *testing.T, store *repositories.RecordStore, userID string, conversation domain.Conversation, body string) domain.Message {
	t.Helper()
	service := NewMessageService(store, nil, slog.Default(), userID)
	message, err := service.Send(context.Background(), conversation, body, nil)
	require.NoError(t, err)
	return message
}

func TestReceiptService_Monotonic(t *testing.T) {
	store := newStore(t, repositories.WithClock(tickingClock()))
	ctx := context.Background()
	conversation := newConversation(t, store, "alice", "bob")
	message := sendAs(t, store, "alice", conversation, "read me")

	bob := NewReceiptService(store, nil, slog.Default(), "bob")

	t.Run("should record a read receipt", func(t *testing.T) {
		req := require.New(t)
		req.NoError(bob.MarkRead(ctx, []domain.Message{message}))

		receipts, err := bob.FetchReceipts(ctx, message)
		req.NoError(err)
		req.Len(receipts, 1)
		req.Equal("bob", receipts[0].UserID)
		req.Equal(domain.ReceiptStatusRead, receipts[0].Status)
		req.False(receipts[0].ReadAt.IsZero())
	})

	t.Run("should not regress read to delivered", func(t *testing.T) {
		req := require.New(t)
		req.NoError(bob.MarkDelivered(ctx, []domain.Message{message}))

		receipts, err := bob.FetchReceipts(ctx, message)
		req.NoError(err)
		req.Len(receipts, 1)
		req.Equal(domain.ReceiptStatusRead, receipts[0].Status)
	})

	t.Run("should keep the delivered timestamp when upgrading to read", func(t *testing.T) {
		req := require.New(t)
		second := sendAs(t, store, "alice", conversation, "again")
		req.NoError(bob.MarkDeliveredByID(ctx, []string{second.ID}))
		req.NoError(bob.MarkReadByID(ctx, []string{second.ID}))

		receipts, err := bob.FetchReceipts(ctx, second)
		req.NoError(err)
		req.Len(receipts, 1)
		req.Equal(domain.ReceiptStatusRead, receipts[0].Status)
		req.False(receipts[0].DeliveredAt.IsZero())
		req.False(receipts[0].ReadAt.IsZero())
	})

	t.Run("should keep one receipt per recipient", func(t *testing.T) {
		req := require.New(t)
		clara := NewReceiptService(store, nil, slog.Default(), "clara")
		req.NoError(clara.MarkDelivered(ctx, []domain.Message{message}))

		receipts, err := bob.FetchReceipts(ctx, message)
		req.NoError(err)
		req.Len(receipts, 2)
	})

	t.Run("should reject an empty mark", func(t *testing.T) {
		req := require.New(t)
		err := bob.MarkRead(ctx, nil)
		req.True(chaterrors.IsKind(err, chaterrors.KindValidation))
	})
}

func TestReceiptService_UnreadCount(t *testing.T) {
	store := newStore(t, repositories.WithClock(tickingClock()))
	ctx := context.Background()
	conversation := newConversation(t, store, "alice", "bob")

	bobConversations := NewConversationService(store, slog.Default(), "bob")
	bob := NewReceiptService(store, nil, slog.Default(), "bob")

	messages := make([]domain.Message, 0, 3)
	for _, body := range []string{"one", "two", "three"} {
		messages = append(messages, sendAs(t, store, "alice", conversation, body))
	}

	uc, err := bobConversations.FetchUserConversation(ctx, conversation.ID)
	require.NoError(t, err)

	t.Run("should count all peer messages as unread initially", func(t *testing.T) {
		req := require.New(t)
		unread, err := bob.FetchUnreadCount(ctx, uc)
		req.NoError(err)
		req.Equal(3, unread)
	})

	t.Run("should drop by exactly one after reading the newest", func(t *testing.T) {
		req := require.New(t)
		req.NoError(bob.MarkRead(ctx, []domain.Message{messages[2]}))
		unread, err := bob.FetchUnreadCount(ctx, uc)
		req.NoError(err)
		req.Equal(2, unread)
	})

	t.Run("should not count the author's own messages", func(t *testing.T) {
		req := require.New(t)
		alice := NewReceiptService(store, nil, slog.Default(), "alice")
		aliceUC, err := NewConversationService(store, slog.Default(), "alice").
			FetchUserConversation(ctx, conversation.ID)
		req.NoError(err)
		unread, err := alice.FetchUnreadCount(ctx, aliceUC)
		req.NoError(err)
		req.Zero(unread)
	})

	t.Run("should move the last-read pointer without writing receipts", func(t *testing.T) {
		req := require.New(t)
		updated, err := bob.MarkLastRead(ctx, messages[1], uc)
		req.NoError(err)
		req.Equal(messages[1].ID, updated.LastReadMessageID)
		// Newer than the pointer: only "three", already read above.
		req.Zero(updated.UnreadCount)

		receipts, err := bob.FetchReceipts(ctx, messages[1])
		req.NoError(err)
		req.Empty(receipts)
	})
}

func TestReceiptService_TotalUnreadCount(t *testing.T) {
	req := require.New(t)
	store := newStore(t, repositories.WithClock(tickingClock()))
	ctx := context.Background()

	// bob: 2 unread in conv1, 0 in conv2, 5 in conv3.
	conv1 := newConversation(t, store, "alice", "bob")
	conv2 := newConversation(t, store, "alice", "bob")
	conv3 := newConversation(t, store, "alice", "bob")

	for i := 0; i < 2; i++ {
		sendAs(t, store, "alice", conv1, "conv1")
	}
	for i := 0; i < 5; i++ {
		sendAs(t, store, "alice", conv3, "conv3")
	}
	read := sendAs(t, store, "alice", conv2, "conv2")

	bob := NewReceiptService(store, nil, slog.Default(), "bob")
	req.NoError(bob.MarkRead(ctx, []domain.Message{read}))

	counts, err := bob.FetchTotalUnreadCount(ctx)
	req.NoError(err)
	req.Equal(7, counts[domain.MessageUnreadCountKey])
	req.Equal(2, counts[domain.ConversationUnreadCountKey])
}
