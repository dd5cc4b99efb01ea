package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConversation_HasSameParticipants(t *testing.T) {
	conversation := Conversation{ParticipantIDs: []string{"alice", "bob", "carol"}}

	t.Run("should ignore order", func(t *testing.T) {
		require.True(t, conversation.HasSameParticipants([]string{"carol", "alice", "bob"}))
	})

	t.Run("should ignore duplicates", func(t *testing.T) {
		require.True(t, conversation.HasSameParticipants([]string{"bob", "alice", "carol", "alice"}))
	})

	t.Run("should reject a different set", func(t *testing.T) {
		req := require.New(t)
		req.False(conversation.HasSameParticipants([]string{"alice", "bob"}))
		req.False(conversation.HasSameParticipants([]string{"alice", "bob", "dave"}))
	})
}

func TestConversation_RecordRoundTrip(t *testing.T) {
	req := require.New(t)
	conversation := Conversation{
		ID:                     "conv-1",
		Title:                  "general",
		ParticipantIDs:         []string{"alice", "bob"},
		AdminIDs:               []string{"alice"},
		DistinctByParticipants: true,
		Metadata:               map[string]any{"topic": "golang"},
	}

	decoded := ConversationFromRecord(conversation.ToRecord())
	req.Equal(conversation.ParticipantIDs, decoded.ParticipantIDs)
	req.Equal(conversation.AdminIDs, decoded.AdminIDs)
	req.True(decoded.DistinctByParticipants)
	// Reserved keys are lifted out of the metadata bag, user keys stay.
	req.Equal(map[string]any{"topic": "golang"}, decoded.Metadata)
}

func TestReceiptStatus_Supersedes(t *testing.T) {
	req := require.New(t)
	req.True(ReceiptStatusRead.Supersedes(ReceiptStatusDelivered))
	req.False(ReceiptStatusDelivered.Supersedes(ReceiptStatusRead))
	req.False(ReceiptStatusRead.Supersedes(ReceiptStatusRead))
	req.False(ReceiptStatusDelivered.Supersedes(ReceiptStatusDelivered))
}
