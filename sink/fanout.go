// Package sink routes committed record mutations to the notification
// channels of the users allowed to observe them. It is the reference
// backend's server side of the user channel: the embedded record store
// calls it after each save or delete.
package sink

import (
	"context"
	"errors"
	"log/slog"

	"chatkit/contract"
	"chatkit/domain"
	"chatkit/domain/event"
	chaterrors "chatkit/errors"
)

type ChannelFanout struct {
	gateway contract.IRecordGateway
	pubsub  contract.IPubSub
	log     *slog.Logger
}

func NewChannelFanout(gateway contract.IRecordGateway, pubsub contract.IPubSub, log *slog.Logger) *ChannelFanout {
	return &ChannelFanout{gateway: gateway, pubsub: pubsub, log: log}
}

// Notify fans the event out to every participant able to observe the
// mutated record. Delivery is best effort; a missing channel just means
// the user never subscribed.
func (f *ChannelFanout) Notify(ctx context.Context, e event.RecordEvent) {
	userIDs, err := f.audience(ctx, e.Record)
	if err != nil {
		f.log.Error("resolving event audience", "record_type", e.Record.Type, "error", err)
		return
	}
	payload := e.Encode()
	for _, userID := range userIDs {
		channel, err := f.channelName(ctx, userID)
		if errors.Is(err, chaterrors.ErrNotFound) {
			continue
		}
		if err != nil {
			f.log.Error("resolving user channel", "user_id", userID, "error", err)
			continue
		}
		if err := f.pubsub.Publish(ctx, channel, payload); err != nil {
			f.log.Error("publishing event", "channel", channel, "error", err)
		}
	}
}

func (f *ChannelFanout) audience(ctx context.Context, record domain.Record) ([]string, error) {
	switch record.Type {
	case domain.RecordTypeConversation:
		return record.StringSlice("participants"), nil
	case domain.RecordTypeMessage:
		return f.conversationAudience(ctx, record.String("conversation_id"))
	case domain.RecordTypeReceipt:
		message, err := f.gateway.Get(ctx, domain.RecordTypeMessage, record.String("message_id"))
		if err != nil {
			return nil, err
		}
		return f.conversationAudience(ctx, message.String("conversation_id"))
	case domain.RecordTypeUserConversation:
		return []string{record.OwnerID}, nil
	}
	return nil, nil
}

func (f *ChannelFanout) conversationAudience(ctx context.Context, conversationID string) ([]string, error) {
	record, err := f.gateway.Get(ctx, domain.RecordTypeConversation, conversationID)
	if errors.Is(err, chaterrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record.StringSlice("participants"), nil
}

func (f *ChannelFanout) channelName(ctx context.Context, userID string) (string, error) {
	record, err := f.gateway.Get(ctx, domain.RecordTypeUserChannel, userID)
	if err != nil {
		return "", err
	}
	return domain.UserChannelFromRecord(record).Name, nil
}
