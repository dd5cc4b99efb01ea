//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"time"

	"chatkit/domain"
	"chatkit/domain/event"
)

// RecordQuery narrows a typed record scan. Zero fields are ignored.
// Message queries scoped to a conversation come back newest-first;
// other scans carry no ordering guarantee.
type RecordQuery struct {
	Type           string
	OwnerID        string
	ConversationID string
	// Before keeps only records created strictly earlier. It is a
	// cursor, not an offset, so pages stay stable while newer records
	// keep arriving.
	Before time.Time
	Limit  int
	Filter func(domain.Record) bool
}

// IRecordGateway is the backend this layer is built on: durable typed
// records with optimistic saves, plus binary asset upload. Consumed,
// never implemented, by the services; repositories carries an embedded
// reference implementation.
type IRecordGateway interface {
	// Save persists the record. A zero revision creates; a non-zero
	// revision must match the stored one or the save fails with a
	// conflict. The returned record carries the bumped revision and
	// server-assigned timestamps.
	Save(ctx context.Context, record domain.Record) (domain.Record, error)
	Get(ctx context.Context, recordType, id string) (domain.Record, error)
	Delete(ctx context.Context, recordType, id string) error
	Query(ctx context.Context, query RecordQuery) ([]domain.Record, error)
	// UploadAsset stores the bytes and returns the reference to embed
	// in a record. Upload happens before the dependent record save so a
	// failed upload never leaves a dangling reference.
	UploadAsset(ctx context.Context, name string, data []byte) (domain.AssetRef, error)
	FetchAsset(ctx context.Context, name string) ([]byte, domain.AssetRef, error)
}

// EventHandler receives one decoded opaque payload per inbound event.
type EventHandler func(payload map[string]any)

// IPubSub is the notification transport: per-channel ordered delivery,
// no cross-channel guarantees. Reconnection and heartbeats belong to
// the implementation, not to this layer.
type IPubSub interface {
	Publish(ctx context.Context, channel string, payload map[string]any) error
	// Subscribe registers a handler and returns its cancel function.
	Subscribe(channel string, handler EventHandler) (func(), error)
}

// INotifier observes committed record mutations. The embedded gateway
// calls it after every successful save or delete, which is how the
// reference backend feeds user channels.
type INotifier interface {
	Notify(ctx context.Context, e event.RecordEvent)
}
