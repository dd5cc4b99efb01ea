package services

import (
	"log/slog"

	"chatkit/contract"
	"chatkit/projection"
)

// Session is the exposed surface for one authenticated user: the four
// chat services sharing a single local projection. Built once per
// login; Logout tears down the channel subscriptions.
type Session struct {
	UserID        string
	State         *projection.State
	Conversations *ConversationService
	Messages      *MessageService
	Receipts      *ReceiptService
	Channel       *ChannelService
}

func NewSession(gateway contract.IRecordGateway, pubsub contract.IPubSub, log *slog.Logger, userID string) *Session {
	state := projection.NewState(userID)
	return &Session{
		UserID:        userID,
		State:         state,
		Conversations: NewConversationService(gateway, log, userID),
		Messages:      NewMessageService(gateway, state, log, userID),
		Receipts:      NewReceiptService(gateway, state, log, userID),
		Channel:       NewChannelService(gateway, pubsub, state, log, userID),
	}
}

func (s *Session) Logout() {
	s.Channel.Close()
}
