package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"chatkit/contract"
	"chatkit/domain"
	"chatkit/domain/event"
	chaterrors "chatkit/errors"
)

func openStore(t *testing.T, options ...Option) *RecordStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRecordStore(db, slog.Default(), options...)
}

// tickingClock hands out strictly increasing timestamps so message
// ordering is deterministic.
func tickingClock() func() time.Time {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		at = at.Add(time.Second)
		return at
	}
}

func TestRecordStore_Save_RevisionSemantics(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	record := domain.NewRecord(domain.RecordTypeConversation, "conv-1", "alice")
	record.Data["title"] = "general"

	t.Run("should create with revision 1 and server timestamps", func(t *testing.T) {
		req := require.New(t)
		saved, err := store.Save(ctx, record)
		req.NoError(err)
		req.Equal(uint64(1), saved.Revision)
		req.False(saved.CreatedAt.IsZero())
		req.Equal(saved.CreatedAt, saved.UpdatedAt)
	})

	t.Run("should reject a stale revision with a conflict", func(t *testing.T) {
		req := require.New(t)
		_, err := store.Save(ctx, record) // still revision 0
		req.Error(err)
		req.True(chaterrors.IsKind(err, chaterrors.KindConflict))
		req.ErrorIs(err, chaterrors.ErrStaleRevision)
	})

	t.Run("should accept a save carrying the current revision", func(t *testing.T) {
		req := require.New(t)
		current, err := store.Get(ctx, domain.RecordTypeConversation, "conv-1")
		req.NoError(err)
		current.Data["title"] = "renamed"
		saved, err := store.Save(ctx, current)
		req.NoError(err)
		req.Equal(uint64(2), saved.Revision)
		req.Equal(current.CreatedAt, saved.CreatedAt)
	})
}

func TestRecordStore_Get_NotFound(t *testing.T) {
	store := openStore(t)
	_, err := store.Get(context.Background(), domain.RecordTypeMessage, "missing")
	require.ErrorIs(t, err, chaterrors.ErrNotFound)
}

func saveMessage(t *testing.T, store *RecordStore, id, conversationID, body string) domain.Record {
	t.Helper()
	record := domain.NewRecord(domain.RecordTypeMessage, id, "alice")
	record.Data["conversation_id"] = conversationID
	record.Data["body"] = body
	saved, err := store.Save(context.Background(), record)
	require.NoError(t, err)
	return saved
}

func TestRecordStore_QueryMessages_Pagination(t *testing.T) {
	store := openStore(t, WithClock(tickingClock()))
	ctx := context.Background()

	first := saveMessage(t, store, "m1", "conv-1", "one")
	second := saveMessage(t, store, "m2", "conv-1", "two")
	third := saveMessage(t, store, "m3", "conv-1", "three")
	saveMessage(t, store, "other", "conv-2", "elsewhere")

	t.Run("should return the newest page first", func(t *testing.T) {
		req := require.New(t)
		records, err := store.Query(ctx, contract.RecordQuery{
			Type:           domain.RecordTypeMessage,
			ConversationID: "conv-1",
			Limit:          2,
		})
		req.NoError(err)
		req.Len(records, 2)
		req.Equal(third.ID, records[0].ID)
		req.Equal(second.ID, records[1].ID)
	})

	t.Run("should return only records strictly older than the cursor", func(t *testing.T) {
		req := require.New(t)
		records, err := store.Query(ctx, contract.RecordQuery{
			Type:           domain.RecordTypeMessage,
			ConversationID: "conv-1",
			Before:         second.CreatedAt,
			Limit:          10,
		})
		req.NoError(err)
		req.Len(records, 1)
		req.Equal(first.ID, records[0].ID)
	})

	t.Run("should chain pages disjointly through the cursor", func(t *testing.T) {
		req := require.New(t)
		page, err := store.Query(ctx, contract.RecordQuery{
			Type:           domain.RecordTypeMessage,
			ConversationID: "conv-1",
			Limit:          2,
		})
		req.NoError(err)

		older, err := store.Query(ctx, contract.RecordQuery{
			Type:           domain.RecordTypeMessage,
			ConversationID: "conv-1",
			Before:         page[len(page)-1].CreatedAt,
			Limit:          2,
		})
		req.NoError(err)
		req.Len(older, 1)
		for _, record := range older {
			req.True(record.CreatedAt.Before(page[len(page)-1].CreatedAt))
		}
	})
}

func TestRecordStore_ScanType_Filters(t *testing.T) {
	req := require.New(t)
	store := openStore(t)
	ctx := context.Background()

	for _, pair := range [][2]string{{"alice", "conv-1"}, {"alice", "conv-2"}, {"bob", "conv-1"}} {
		userID, conversationID := pair[0], pair[1]
		record := domain.NewRecord(domain.RecordTypeUserConversation, domain.UserConversationID(userID, conversationID), userID)
		record.Data["conversation_id"] = conversationID
		_, err := store.Save(ctx, record)
		req.NoError(err)
	}

	records, err := store.Query(ctx, contract.RecordQuery{
		Type:    domain.RecordTypeUserConversation,
		OwnerID: "alice",
	})
	req.NoError(err)
	req.Len(records, 2)
	for _, record := range records {
		req.Equal("alice", record.OwnerID)
	}

	records, err = store.Query(ctx, contract.RecordQuery{
		Type:           domain.RecordTypeUserConversation,
		ConversationID: "conv-1",
	})
	req.NoError(err)
	req.Len(records, 2)
}

type capturingNotifier struct {
	events []event.RecordEvent
}

func (c *capturingNotifier) Notify(_ context.Context, e event.RecordEvent) {
	c.events = append(c.events, e)
}

func TestRecordStore_NotifiesOnMutation(t *testing.T) {
	req := require.New(t)
	notifier := &capturingNotifier{}
	store := openStore(t, WithNotifier(notifier))
	ctx := context.Background()

	saved := saveMessage(t, store, "m1", "conv-1", "hello")
	req.Len(notifier.events, 1)
	req.Equal(event.ActionCreated, notifier.events[0].Action)

	saved.Data["deleted"] = true
	_, err := store.Save(ctx, saved)
	req.NoError(err)
	req.Len(notifier.events, 2)
	req.Equal(event.ActionUpdated, notifier.events[1].Action)

	req.NoError(store.Delete(ctx, domain.RecordTypeMessage, "m1"))
	req.Len(notifier.events, 3)
	req.Equal(event.ActionDeleted, notifier.events[2].Action)
}

func TestRecordStore_Assets(t *testing.T) {
	req := require.New(t)
	store := openStore(t)
	ctx := context.Background()

	data := []byte("\x89PNG\r\n\x1a\nfakepixels")
	ref, err := store.UploadAsset(ctx, domain.AssetNameImage, data)
	req.NoError(err)
	req.Equal("image/png", ref.ContentType)
	req.Equal(int64(len(data)), ref.Size)
	req.Contains(ref.Name, domain.AssetNameImage)

	fetched, fetchedRef, err := store.FetchAsset(ctx, ref.Name)
	req.NoError(err)
	req.Equal(data, fetched)
	req.Equal(ref, fetchedRef)

	_, err = store.UploadAsset(ctx, domain.AssetNameImage, nil)
	req.True(chaterrors.IsKind(err, chaterrors.KindValidation))
}
