//go:generate go run go.uber.org/mock/mockgen -source=message_service.go -destination=../mocks/mock_message_service.go -package=mocks
package services

import (
	"context"
	"log/slog"

	"chatkit/contract"
	"chatkit/domain"
	"chatkit/domain/event"
	chaterrors "chatkit/errors"
	"chatkit/projection"
)

type IMessageService interface {
	Send(ctx context.Context, conversation domain.Conversation, body string, metadata map[string]any) (domain.Message, error)
	SendImage(ctx context.Context, conversation domain.Conversation, body string, image []byte) (domain.Message, error)
	SendVoice(ctx context.Context, conversation domain.Conversation, body string, voice []byte, duration float64) (domain.Message, error)
	Add(ctx context.Context, message domain.Message, conversation domain.Conversation) (domain.Message, error)
	AddWithAsset(ctx context.Context, message domain.Message, asset []byte, conversation domain.Conversation) (domain.Message, error)
	Delete(ctx context.Context, message domain.Message) (domain.Message, error)
	DeleteByID(ctx context.Context, messageID string) (domain.Message, error)
	Fetch(ctx context.Context, cmd domain.FetchMessagesCommand) ([]domain.Message, error)
	FetchAsset(ctx context.Context, messageID string) ([]byte, domain.AssetRef, error)
}

// MessageService composes and commits messages. Exactly one content
// form per call: plain body, image, or voice. Asset-carrying variants
// upload the asset first; the message is only saved once the upload
// succeeded, so a saved message never dangles.
type MessageService struct {
	gateway contract.IRecordGateway
	state   *projection.State
	log     *slog.Logger
	userID  string
}

func NewMessageService(gateway contract.IRecordGateway, state *projection.State, log *slog.Logger, userID string) *MessageService {
	return &MessageService{gateway: gateway, state: state, log: log, userID: userID}
}

func (s *MessageService) Send(ctx context.Context, conversation domain.Conversation, body string, metadata map[string]any) (domain.Message, error) {
	if body == "" && len(metadata) == 0 {
		return domain.Message{}, chaterrors.Validation("send: %w", chaterrors.ErrNoContent)
	}
	return s.Add(ctx, domain.NewMessage(body, metadata), conversation)
}

func (s *MessageService) SendImage(ctx context.Context, conversation domain.Conversation, body string, image []byte) (domain.Message, error) {
	if len(image) == 0 {
		return domain.Message{}, chaterrors.Validation("send image: %w", chaterrors.ErrNoContent)
	}
	message := domain.NewMessage(body, map[string]any{
		domain.MessageTypeMetadataKey: string(domain.MetadataTypeImage),
	})
	return s.AddWithAsset(ctx, message, image, conversation)
}

func (s *MessageService) SendVoice(ctx context.Context, conversation domain.Conversation, body string, voice []byte, duration float64) (domain.Message, error) {
	if len(voice) == 0 {
		return domain.Message{}, chaterrors.Validation("send voice: %w", chaterrors.ErrNoContent)
	}
	message := domain.NewMessage(body, map[string]any{
		domain.MessageTypeMetadataKey:   string(domain.MetadataTypeVoice),
		domain.VoiceDurationMetadataKey: duration,
	})
	return s.AddWithAsset(ctx, message, voice, conversation)
}

// Add stamps the message with the owning conversation and commits it.
// The store assigns the creation timestamp that orders the timeline.
func (s *MessageService) Add(ctx context.Context, message domain.Message, conversation domain.Conversation) (domain.Message, error) {
	if message.Body == "" && message.Asset == nil && len(message.Metadata) == 0 {
		return domain.Message{}, chaterrors.Validation("add message: %w", chaterrors.ErrNoContent)
	}
	if conversation.ID == "" {
		return domain.Message{}, chaterrors.Validation("add message: conversation has no id")
	}
	message.ConversationID = conversation.ID
	message.AuthorID = s.userID
	record, err := s.gateway.Save(ctx, message.ToRecord())
	if err != nil {
		return domain.Message{}, chaterrors.Backend(err)
	}
	saved := domain.MessageFromRecord(record)
	s.project(event.ActionCreated, record)
	return saved, nil
}

// AddWithAsset uploads the asset under the per-type default name, then
// commits the message referencing it.
func (s *MessageService) AddWithAsset(ctx context.Context, message domain.Message, asset []byte, conversation domain.Conversation) (domain.Message, error) {
	ref, err := s.gateway.UploadAsset(ctx, assetName(message.Type()), asset)
	if err != nil {
		return domain.Message{}, chaterrors.Backend(err)
	}
	message.Asset = &ref
	return s.Add(ctx, message, conversation)
}

func assetName(messageType domain.MetadataType) string {
	switch messageType {
	case domain.MetadataTypeImage:
		return domain.AssetNameImage
	case domain.MetadataTypeVoice:
		return domain.AssetNameVoice
	}
	return domain.AssetNameText
}

// Delete soft-deletes: the flag is set and the record saved, so other
// participants' pagination over the timeline stays stable.
func (s *MessageService) Delete(ctx context.Context, message domain.Message) (domain.Message, error) {
	message.Deleted = true
	record, err := s.gateway.Save(ctx, message.ToRecord())
	if err != nil {
		return domain.Message{}, chaterrors.Backend(err)
	}
	s.project(event.ActionUpdated, record)
	return domain.MessageFromRecord(record), nil
}

func (s *MessageService) DeleteByID(ctx context.Context, messageID string) (domain.Message, error) {
	record, err := s.gateway.Get(ctx, domain.RecordTypeMessage, messageID)
	if err != nil {
		return domain.Message{}, chaterrors.Backend(err)
	}
	return s.Delete(ctx, domain.MessageFromRecord(record))
}

// Fetch pages the timeline newest-first. BeforeTime is the only cursor:
// only messages strictly older come back, so a page never shifts when
// newer messages keep arriving. Soft-deleted messages are returned
// flagged, preserving positions callers may already hold.
func (s *MessageService) Fetch(ctx context.Context, cmd domain.FetchMessagesCommand) ([]domain.Message, error) {
	if err := validate.Struct(cmd); err != nil {
		return nil, chaterrors.Validation("fetch messages: %w", err)
	}
	records, err := s.gateway.Query(ctx, contract.RecordQuery{
		Type:           domain.RecordTypeMessage,
		ConversationID: cmd.ConversationID,
		Before:         cmd.BeforeTime,
		Limit:          cmd.Limit,
	})
	if err != nil {
		return nil, chaterrors.Backend(err)
	}
	messages := make([]domain.Message, 0, len(records))
	for _, record := range records {
		messages = append(messages, domain.MessageFromRecord(record))
	}
	return messages, nil
}

// FetchAsset resolves the asset attached to a message record.
func (s *MessageService) FetchAsset(ctx context.Context, messageID string) ([]byte, domain.AssetRef, error) {
	record, err := s.gateway.Get(ctx, domain.RecordTypeMessage, messageID)
	if err != nil {
		return nil, domain.AssetRef{}, chaterrors.Backend(err)
	}
	message := domain.MessageFromRecord(record)
	if message.Asset == nil {
		return nil, domain.AssetRef{}, chaterrors.Validation("message %s carries no asset", messageID)
	}
	data, ref, err := s.gateway.FetchAsset(ctx, message.Asset.Name)
	if err != nil {
		return nil, domain.AssetRef{}, chaterrors.Backend(err)
	}
	return data, ref, nil
}

func (s *MessageService) project(action event.Action, record domain.Record) {
	if s.state == nil {
		return
	}
	s.state.Apply(event.RecordEvent{Action: action, Record: record})
}
