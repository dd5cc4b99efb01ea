//go:generate go run go.uber.org/mock/mockgen -source=record.go -destination=../mocks/mock_record_store.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chatkit/contract"
	"chatkit/domain"
	"chatkit/domain/event"
	chaterrors "chatkit/errors"
)

// RecordStore is the embedded reference implementation of the record
// gateway, backed by BadgerDB.
//
// Key layout:
//   - "rec:{type}:{id}" holds the record as JSON.
//   - "msg:{conversation_id}:{timestamp_padded}:{id}" indexes messages.
//     The 19-digit zero-padded UnixNano makes lexicographic order equal
//     chronological order, so pagination is a reverse prefix scan; the
//     trailing id disambiguates two messages in the same nanosecond.
type RecordStore struct {
	db       *badger.DB
	log      *slog.Logger
	notifier contract.INotifier
	now      func() time.Time
}

type Option func(*RecordStore)

// WithNotifier makes the store emit a record event after every
// committed save and delete, emulating the backend's notification side.
func WithNotifier(notifier contract.INotifier) Option {
	return func(s *RecordStore) { s.notifier = notifier }
}

// SetNotifier attaches the notifier after construction. The channel
// fanout reads audiences through the store it observes, so the two are
// wired in this order.
func (s *RecordStore) SetNotifier(notifier contract.INotifier) {
	s.notifier = notifier
}

// WithClock overrides the server clock, for tests that need distinct
// deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *RecordStore) { s.now = now }
}

func NewRecordStore(db *badger.DB, log *slog.Logger, options ...Option) *RecordStore {
	store := &RecordStore{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
	for _, option := range options {
		option(store)
	}
	return store
}

type storedRecord struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	OwnerID   string         `json:"owner_id"`
	Data      map[string]any `json:"data"`
	Revision  uint64         `json:"revision"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func recordKey(recordType, id string) []byte {
	return []byte(fmt.Sprintf("rec:%s:%s", recordType, id))
}

func messageIndexKey(conversationID string, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", conversationID, at.UnixNano(), id))
}

// Save persists the record with an optimistic revision check. The
// stored revision must match the incoming one exactly; zero only
// matches a record that does not exist yet.
func (s *RecordStore) Save(ctx context.Context, record domain.Record) (domain.Record, error) {
	if record.Type == "" || record.ID == "" {
		return domain.Record{}, chaterrors.Validation("record needs a type and an id")
	}
	now := s.now()
	saved := record
	created := false
	err := s.db.Update(func(txn *badger.Txn) error {
		key := recordKey(record.Type, record.ID)
		existing, err := readRecord(txn, key)
		switch err {
		case nil:
			if record.Revision != existing.Revision {
				return chaterrors.Conflict("save %s/%s: %w", record.Type, record.ID, chaterrors.ErrStaleRevision)
			}
			saved.CreatedAt = existing.CreatedAt
		case badger.ErrKeyNotFound:
			if record.Revision != 0 {
				return chaterrors.Conflict("save %s/%s: %w", record.Type, record.ID, chaterrors.ErrStaleRevision)
			}
			created = true
			saved.CreatedAt = now
		default:
			return err
		}
		saved.Revision = record.Revision + 1
		saved.UpdatedAt = now

		bytes, err := json.Marshal(toStored(saved))
		if err != nil {
			return err
		}
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		if created && saved.Type == domain.RecordTypeMessage {
			conversationID, _ := saved.Data["conversation_id"].(string)
			return txn.Set(messageIndexKey(conversationID, saved.CreatedAt, saved.ID), []byte(saved.ID))
		}
		return nil
	})
	if err != nil {
		return domain.Record{}, err
	}
	s.notify(ctx, saveAction(created), saved)
	return saved, nil
}

func saveAction(created bool) event.Action {
	if created {
		return event.ActionCreated
	}
	return event.ActionUpdated
}

func (s *RecordStore) Get(ctx context.Context, recordType, id string) (domain.Record, error) {
	var record domain.Record
	err := s.db.View(func(txn *badger.Txn) error {
		stored, err := readRecord(txn, recordKey(recordType, id))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("get %s/%s: %w", recordType, id, chaterrors.ErrNotFound)
		}
		if err != nil {
			return err
		}
		record = fromStored(stored)
		return nil
	})
	return record, err
}

func (s *RecordStore) Delete(ctx context.Context, recordType, id string) error {
	var deleted domain.Record
	err := s.db.Update(func(txn *badger.Txn) error {
		key := recordKey(recordType, id)
		stored, err := readRecord(txn, key)
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("delete %s/%s: %w", recordType, id, chaterrors.ErrNotFound)
		}
		if err != nil {
			return err
		}
		deleted = fromStored(stored)
		if recordType == domain.RecordTypeMessage {
			conversationID, _ := stored.Data["conversation_id"].(string)
			if err := txn.Delete(messageIndexKey(conversationID, stored.CreatedAt, id)); err != nil {
				return err
			}
		}
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}
	s.notify(ctx, event.ActionDeleted, deleted)
	return nil
}

// Query scans one record type. Message queries scoped to a conversation
// go through the time index (reverse scan, Before as seek cursor);
// everything else is a filtered scan over the type prefix.
func (s *RecordStore) Query(ctx context.Context, query contract.RecordQuery) ([]domain.Record, error) {
	if query.Type == "" {
		return nil, chaterrors.Validation("query needs a record type")
	}
	if query.Type == domain.RecordTypeMessage && query.ConversationID != "" {
		return s.queryMessages(ctx, query)
	}
	return s.scanType(query)
}

func (s *RecordStore) queryMessages(ctx context.Context, query contract.RecordQuery) ([]domain.Record, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", query.ConversationID))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek to just past the cursor position; with no cursor, start
		// at the newest possible key for the conversation.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		if !query.Before.IsZero() {
			seekKey = []byte(fmt.Sprintf("msg:%s:%019d:", query.ConversationID, query.Before.UnixNano()))
		}
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if query.Limit > 0 && len(ids) == query.Limit {
				s.log.Debug(fmt.Sprintf("Maximum of %d messages reached", query.Limit))
				break
			}
			item := it.Item()
			err := item.Value(func(value []byte) error {
				ids = append(ids, string(value))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		record, err := s.Get(ctx, domain.RecordTypeMessage, id)
		if err != nil {
			return nil, err
		}
		if query.Filter != nil && !query.Filter(record) {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *RecordStore) scanType(query contract.RecordQuery) ([]domain.Record, error) {
	var records []domain.Record
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("rec:%s:", query.Type))
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var stored storedRecord
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &stored)
			})
			if err != nil {
				return err
			}
			record := fromStored(stored)
			if !matches(record, query) {
				continue
			}
			records = append(records, record)
			if query.Limit > 0 && len(records) == query.Limit {
				break
			}
		}
		return nil
	})
	return records, err
}

func matches(record domain.Record, query contract.RecordQuery) bool {
	if query.OwnerID != "" && record.OwnerID != query.OwnerID {
		return false
	}
	if query.ConversationID != "" && record.String("conversation_id") != query.ConversationID {
		return false
	}
	if !query.Before.IsZero() && !record.CreatedAt.Before(query.Before) {
		return false
	}
	if query.Filter != nil && !query.Filter(record) {
		return false
	}
	return true
}

func (s *RecordStore) notify(ctx context.Context, action event.Action, record domain.Record) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, event.RecordEvent{Action: action, Record: record})
}

func readRecord(txn *badger.Txn, key []byte) (storedRecord, error) {
	item, err := txn.Get(key)
	if err != nil {
		return storedRecord{}, err
	}
	var stored storedRecord
	err = item.Value(func(value []byte) error {
		return json.Unmarshal(value, &stored)
	})
	return stored, err
}

func toStored(record domain.Record) storedRecord {
	return storedRecord{
		ID:        record.ID,
		Type:      record.Type,
		OwnerID:   record.OwnerID,
		Data:      record.Data,
		Revision:  record.Revision,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func fromStored(stored storedRecord) domain.Record {
	record := domain.Record{
		ID:        stored.ID,
		Type:      stored.Type,
		OwnerID:   stored.OwnerID,
		Data:      stored.Data,
		Revision:  stored.Revision,
		CreatedAt: stored.CreatedAt,
		UpdatedAt: stored.UpdatedAt,
	}
	if record.Data == nil {
		record.Data = map[string]any{}
	}
	return record
}
