// Package event defines the mutation events arriving on a user channel
// and their opaque key-value wire shape. Transport concerns
// (reconnection, heartbeats) stay outside; this package only decodes
// and routes.
package event

import (
	"fmt"
	"time"

	"chatkit/domain"
)

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// RecordEvent mirrors one entity mutation observed by the backend.
// Applying the same event twice must be a no-op for any consumer; the
// record id and revision make that detectable.
type RecordEvent struct {
	Action Action
	Record domain.Record
}

// Encode renders the event as the opaque payload the notification
// transport carries.
func (e RecordEvent) Encode() map[string]any {
	return map[string]any{
		"event":       string(e.Action),
		"record_type": e.Record.Type,
		"record": map[string]any{
			"id":         e.Record.ID,
			"owner_id":   e.Record.OwnerID,
			"data":       e.Record.Data,
			"revision":   e.Record.Revision,
			"created_at": e.Record.CreatedAt.Format(time.RFC3339Nano),
			"updated_at": e.Record.UpdatedAt.Format(time.RFC3339Nano),
		},
	}
}

// Decode parses an inbound payload. Unknown record types are not an
// error here; routing decides what to ignore.
func Decode(payload map[string]any) (RecordEvent, error) {
	action, _ := payload["event"].(string)
	switch Action(action) {
	case ActionCreated, ActionUpdated, ActionDeleted:
	default:
		return RecordEvent{}, fmt.Errorf("unknown event action %q", action)
	}
	recordType, _ := payload["record_type"].(string)
	if recordType == "" {
		return RecordEvent{}, fmt.Errorf("event payload is missing record_type")
	}
	raw, _ := payload["record"].(map[string]any)
	if raw == nil {
		return RecordEvent{}, fmt.Errorf("event payload is missing record")
	}
	wrapper := domain.Record{Data: raw}
	record := domain.Record{
		ID:        wrapper.String("id"),
		Type:      recordType,
		OwnerID:   wrapper.String("owner_id"),
		Revision:  uint64(wrapper.Float("revision")),
		CreatedAt: wrapper.Time("created_at"),
		UpdatedAt: wrapper.Time("updated_at"),
	}
	record.Data, _ = raw["data"].(map[string]any)
	if record.Data == nil {
		record.Data = map[string]any{}
	}
	return RecordEvent{Action: Action(action), Record: record}, nil
}
