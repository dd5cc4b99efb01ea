package domain

import (
	"time"

	"github.com/samber/lo"
)

// Reserved conversation metadata keys. They live inside the open
// metadata map so that older clients reading the raw record still see
// them; the typed accessors below are the source of truth.
const (
	AdminsMetadataKey                 = "admin_ids"
	DistinctByParticipantsMetadataKey = "distinct_by_participants"
)

// Conversation is a participant set with an optional title and an open
// metadata bag. Admins need not be participants, but creation defaults
// the admin set to the participant set.
type Conversation struct {
	ID                     string
	Title                  string
	ParticipantIDs         []string
	AdminIDs               []string
	DistinctByParticipants bool
	Metadata               map[string]any
	Revision               uint64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// HasSameParticipants compares participant sets, order and duplicates
// irrelevant.
func (c Conversation) HasSameParticipants(participantIDs []string) bool {
	left := lo.Uniq(c.ParticipantIDs)
	right := lo.Uniq(participantIDs)
	return len(left) == len(right) && len(lo.Intersect(left, right)) == len(left)
}

func (c Conversation) HasParticipant(userID string) bool {
	return lo.Contains(c.ParticipantIDs, userID)
}

func (c Conversation) ToRecord() Record {
	metadata := map[string]any{}
	for k, v := range c.Metadata {
		metadata[k] = v
	}
	metadata[AdminsMetadataKey] = c.AdminIDs
	metadata[DistinctByParticipantsMetadataKey] = c.DistinctByParticipants
	return Record{
		ID:       c.ID,
		Type:     RecordTypeConversation,
		Revision: c.Revision,
		Data: map[string]any{
			"title":        c.Title,
			"participants": c.ParticipantIDs,
			"metadata":     metadata,
		},
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func ConversationFromRecord(r Record) Conversation {
	metadata := r.Map("metadata")
	conversation := Conversation{
		ID:             r.ID,
		Title:          r.String("title"),
		ParticipantIDs: r.StringSlice("participants"),
		Revision:       r.Revision,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		Metadata:       map[string]any{},
	}
	for k, v := range metadata {
		switch k {
		case AdminsMetadataKey:
			conversation.AdminIDs = Record{Data: metadata}.StringSlice(AdminsMetadataKey)
		case DistinctByParticipantsMetadataKey:
			conversation.DistinctByParticipants, _ = v.(bool)
		default:
			conversation.Metadata[k] = v
		}
	}
	return conversation
}
