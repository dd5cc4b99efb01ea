// Package domain contains the entities of the chat core and their
// mapping onto the generic record model of the backing store.
// No transport, storage, or UI logic should be added here.
package domain

import (
	"time"
)

// Record type names used by the chat core.
const (
	RecordTypeConversation     = "conversation"
	RecordTypeUserConversation = "user_conversation"
	RecordTypeMessage          = "message"
	RecordTypeReceipt          = "receipt"
	RecordTypeUserChannel      = "user_channel"
)

// Record is the unit the record gateway stores: a typed, schema-open
// key-value document with an optimistic revision counter. Revision 0
// means the record has never been saved; the gateway bumps it on every
// successful save and rejects saves carrying a stale value.
type Record struct {
	ID        string
	Type      string
	OwnerID   string
	Data      map[string]any
	Revision  uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewRecord(recordType, id, ownerID string) Record {
	return Record{
		ID:      id,
		Type:    recordType,
		OwnerID: ownerID,
		Data:    make(map[string]any),
	}
}

// StringSlice reads a []string out of the open data map, tolerating the
// []any shape JSON decoding produces.
func (r Record) StringSlice(key string) []string {
	switch value := r.Data[key].(type) {
	case []string:
		return value
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (r Record) String(key string) string {
	if s, ok := r.Data[key].(string); ok {
		return s
	}
	return ""
}

func (r Record) Bool(key string) bool {
	if b, ok := r.Data[key].(bool); ok {
		return b
	}
	return false
}

func (r Record) Float(key string) float64 {
	switch value := r.Data[key].(type) {
	case float64:
		return value
	case int:
		return float64(value)
	case int64:
		return float64(value)
	case uint64:
		return float64(value)
	}
	return 0
}

func (r Record) Time(key string) time.Time {
	switch value := r.Data[key].(type) {
	case time.Time:
		return value
	case string:
		if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (r Record) Map(key string) map[string]any {
	if m, ok := r.Data[key].(map[string]any); ok {
		return m
	}
	return nil
}

// AssetRef points at an uploaded binary asset. The gateway owns the
// bytes; entities only carry the reference.
type AssetRef struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}
