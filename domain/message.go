package domain

import (
	"time"

	"github.com/google/uuid"
)

// MetadataType tags the content form of a message.
type MetadataType string

const (
	MetadataTypeImage MetadataType = "image"
	MetadataTypeVoice MetadataType = "voice"
	MetadataTypeText  MetadataType = "text"
)

// Per-type default asset names used when a message embeds an asset.
const (
	AssetNameImage = "image"
	AssetNameVoice = "voice"
	AssetNameText  = "text"
)

// MessageTypeMetadataKey is the reserved metadata key carrying the
// MetadataType tag.
const MessageTypeMetadataKey = "message_type"

// VoiceDurationMetadataKey carries the duration of a voice message, in
// seconds.
const VoiceDurationMetadataKey = "duration"

// Message is an immutable chat event inside a conversation. Once saved
// it never changes, except for the soft-delete flag.
type Message struct {
	ID             string
	ConversationID string
	AuthorID       string
	Body           string
	Metadata       map[string]any
	Asset          *AssetRef
	Deleted        bool
	Revision       uint64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewMessage(body string, metadata map[string]any) Message {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Message{
		ID:       uuid.NewString(),
		Body:     body,
		Metadata: metadata,
	}
}

// Type reads the content form tag; messages without one are text.
func (m Message) Type() MetadataType {
	if tag, ok := m.Metadata[MessageTypeMetadataKey].(string); ok && tag != "" {
		return MetadataType(tag)
	}
	return MetadataTypeText
}

func (m Message) ToRecord() Record {
	data := map[string]any{
		"conversation_id": m.ConversationID,
		"body":            m.Body,
		"metadata":        m.Metadata,
		"deleted":         m.Deleted,
	}
	if m.Asset != nil {
		data["asset"] = map[string]any{
			"name":         m.Asset.Name,
			"content_type": m.Asset.ContentType,
			"size":         m.Asset.Size,
		}
	}
	return Record{
		ID:        m.ID,
		Type:      RecordTypeMessage,
		OwnerID:   m.AuthorID,
		Revision:  m.Revision,
		Data:      data,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func MessageFromRecord(r Record) Message {
	message := Message{
		ID:             r.ID,
		ConversationID: r.String("conversation_id"),
		AuthorID:       r.OwnerID,
		Body:           r.String("body"),
		Metadata:       r.Map("metadata"),
		Deleted:        r.Bool("deleted"),
		Revision:       r.Revision,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if message.Metadata == nil {
		message.Metadata = map[string]any{}
	}
	if asset := r.Map("asset"); asset != nil {
		ref := AssetRef{}
		ref.Name, _ = asset["name"].(string)
		ref.ContentType, _ = asset["content_type"].(string)
		ref.Size = int64(Record{Data: asset}.Float("size"))
		message.Asset = &ref
	}
	return message
}
