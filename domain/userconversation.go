package domain

import (
	"fmt"
	"time"
)

// UserConversation is one user's view over a conversation: their
// last-read position and the unread counter derived from it. It exists
// exactly while the user is a participant.
type UserConversation struct {
	UserID            string
	ConversationID    string
	LastReadMessageID string
	LastReadAt        time.Time
	UnreadCount       int
	Revision          uint64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func UserConversationID(userID, conversationID string) string {
	return fmt.Sprintf("%s:%s", userID, conversationID)
}

func (uc UserConversation) ToRecord() Record {
	data := map[string]any{
		"conversation_id": uc.ConversationID,
		"unread_count":    uc.UnreadCount,
	}
	if uc.LastReadMessageID != "" {
		data["last_read_message_id"] = uc.LastReadMessageID
		data["last_read_at"] = uc.LastReadAt.Format(time.RFC3339Nano)
	}
	return Record{
		ID:       UserConversationID(uc.UserID, uc.ConversationID),
		Type:     RecordTypeUserConversation,
		OwnerID:  uc.UserID,
		Revision: uc.Revision,
		Data:     data,
	}
}

func UserConversationFromRecord(r Record) UserConversation {
	return UserConversation{
		UserID:            r.OwnerID,
		ConversationID:    r.String("conversation_id"),
		LastReadMessageID: r.String("last_read_message_id"),
		LastReadAt:        r.Time("last_read_at"),
		UnreadCount:       int(r.Float("unread_count")),
		Revision:          r.Revision,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}
