//go:generate go run go.uber.org/mock/mockgen -source=conversation_service.go -destination=../mocks/mock_conversation_service.go -package=mocks
package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"chatkit/contract"
	"chatkit/domain"
	chaterrors "chatkit/errors"
)

var validate = validator.New()

type IConversationService interface {
	Create(ctx context.Context, cmd domain.CreateConversationCommand) (domain.Conversation, error)
	CreateDirect(ctx context.Context, userID, title string, metadata map[string]any) (domain.Conversation, error)
	Save(ctx context.Context, conversation domain.Conversation) (domain.Conversation, error)
	Delete(ctx context.Context, conversation domain.Conversation) error
	DeleteByID(ctx context.Context, conversationID string) error
	Fetch(ctx context.Context, conversationID string) (domain.Conversation, error)
	FetchUserConversations(ctx context.Context) ([]domain.UserConversation, error)
	FetchUserConversation(ctx context.Context, conversationID string) (domain.UserConversation, error)
	AddParticipants(ctx context.Context, userIDs []string, conversation domain.Conversation) (domain.Conversation, error)
	RemoveParticipants(ctx context.Context, userIDs []string, conversation domain.Conversation) (domain.Conversation, error)
	AddAdmins(ctx context.Context, userIDs []string, conversation domain.Conversation) (domain.Conversation, error)
	RemoveAdmins(ctx context.Context, userIDs []string, conversation domain.Conversation) (domain.Conversation, error)
}

// ConversationService resolves conversation identity and mutates
// membership on behalf of one authenticated user.
type ConversationService struct {
	gateway contract.IRecordGateway
	log     *slog.Logger
	userID  string
}

func NewConversationService(gateway contract.IRecordGateway, log *slog.Logger, userID string) *ConversationService {
	return &ConversationService{gateway: gateway, log: log, userID: userID}
}

// Create normalizes the requested membership and either reuses an
// existing distinct conversation with the exact same participant set or
// creates a new one. A reused conversation comes back unchanged; none
// of its fields are overwritten.
func (s *ConversationService) Create(ctx context.Context, cmd domain.CreateConversationCommand) (domain.Conversation, error) {
	if err := validate.Struct(cmd); err != nil {
		return domain.Conversation{}, chaterrors.Validation("create conversation: %w", err)
	}
	participants := lo.Uniq(append([]string{s.userID}, cmd.ParticipantIDs...))
	admins := cmd.AdminIDs
	if len(admins) == 0 {
		admins = participants
	} else {
		admins = lo.Uniq(append([]string{s.userID}, admins...))
	}

	if cmd.Distinct {
		existing, found, err := s.findDistinct(ctx, participants)
		if err != nil {
			return domain.Conversation{}, chaterrors.Backend(err)
		}
		if found {
			return existing, nil
		}
	}

	conversation := domain.Conversation{
		ID:                     uuid.NewString(),
		Title:                  cmd.Title,
		ParticipantIDs:         participants,
		AdminIDs:               admins,
		DistinctByParticipants: cmd.Distinct,
		Metadata:               cmd.Metadata,
	}
	return s.saveAndSync(ctx, conversation, nil)
}

// CreateDirect is the 1:1 convenience path: the two users, both admins,
// always distinct by participants.
func (s *ConversationService) CreateDirect(ctx context.Context, userID, title string, metadata map[string]any) (domain.Conversation, error) {
	if userID == "" {
		return domain.Conversation{}, chaterrors.Validation("direct conversation needs a user id")
	}
	return s.Create(ctx, domain.CreateConversationCommand{
		ParticipantIDs: []string{s.userID, userID},
		Title:          title,
		Metadata:       metadata,
		Distinct:       true,
	})
}

func (s *ConversationService) findDistinct(ctx context.Context, participants []string) (domain.Conversation, bool, error) {
	records, err := s.gateway.Query(ctx, contract.RecordQuery{
		Type: domain.RecordTypeConversation,
		Filter: func(record domain.Record) bool {
			candidate := domain.ConversationFromRecord(record)
			return candidate.DistinctByParticipants && candidate.HasSameParticipants(participants)
		},
	})
	if err != nil {
		return domain.Conversation{}, false, err
	}
	if len(records) == 0 {
		return domain.Conversation{}, false, nil
	}
	return domain.ConversationFromRecord(records[0]), true, nil
}

// Save persists the conversation as-is. Unlike Create it never reuses
// an existing distinct conversation.
func (s *ConversationService) Save(ctx context.Context, conversation domain.Conversation) (domain.Conversation, error) {
	if len(conversation.ParticipantIDs) == 0 {
		return domain.Conversation{}, chaterrors.Validation("save conversation: %w", chaterrors.ErrEmptyParticipants)
	}
	previous, err := s.Fetch(ctx, conversation.ID)
	if err != nil && !errors.Is(err, chaterrors.ErrNotFound) {
		return domain.Conversation{}, err
	}
	return s.saveAndSync(ctx, conversation, previous.ParticipantIDs)
}

// saveAndSync writes the conversation in a single save, then reconciles
// the per-participant user conversation records against the previous
// membership.
func (s *ConversationService) saveAndSync(ctx context.Context, conversation domain.Conversation, previousParticipants []string) (domain.Conversation, error) {
	record, err := s.gateway.Save(ctx, conversation.ToRecord())
	if err != nil {
		return domain.Conversation{}, chaterrors.Backend(err)
	}
	saved := domain.ConversationFromRecord(record)

	for _, userID := range lo.Without(saved.ParticipantIDs, previousParticipants...) {
		if err := s.ensureUserConversation(ctx, userID, saved.ID); err != nil {
			return domain.Conversation{}, chaterrors.Backend(err)
		}
	}
	for _, userID := range lo.Without(previousParticipants, saved.ParticipantIDs...) {
		if err := s.removeUserConversation(ctx, userID, saved.ID); err != nil {
			return domain.Conversation{}, chaterrors.Backend(err)
		}
	}
	return saved, nil
}

func (s *ConversationService) ensureUserConversation(ctx context.Context, userID, conversationID string) error {
	id := domain.UserConversationID(userID, conversationID)
	_, err := s.gateway.Get(ctx, domain.RecordTypeUserConversation, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, chaterrors.ErrNotFound) {
		return err
	}
	uc := domain.UserConversation{UserID: userID, ConversationID: conversationID}
	_, err = s.gateway.Save(ctx, uc.ToRecord())
	return err
}

func (s *ConversationService) removeUserConversation(ctx context.Context, userID, conversationID string) error {
	id := domain.UserConversationID(userID, conversationID)
	err := s.gateway.Delete(ctx, domain.RecordTypeUserConversation, id)
	if errors.Is(err, chaterrors.ErrNotFound) {
		return nil
	}
	return err
}

func (s *ConversationService) Delete(ctx context.Context, conversation domain.Conversation) error {
	return s.DeleteByID(ctx, conversation.ID)
}

// DeleteByID removes the conversation and every user conversation
// hanging off it.
func (s *ConversationService) DeleteByID(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return chaterrors.Validation("delete conversation: empty id")
	}
	records, err := s.gateway.Query(ctx, contract.RecordQuery{
		Type:           domain.RecordTypeUserConversation,
		ConversationID: conversationID,
	})
	if err != nil {
		return chaterrors.Backend(err)
	}
	for _, record := range records {
		if err := s.gateway.Delete(ctx, domain.RecordTypeUserConversation, record.ID); err != nil && !errors.Is(err, chaterrors.ErrNotFound) {
			return chaterrors.Backend(err)
		}
	}
	if err := s.gateway.Delete(ctx, domain.RecordTypeConversation, conversationID); err != nil {
		return chaterrors.Backend(err)
	}
	return nil
}

func (s *ConversationService) Fetch(ctx context.Context, conversationID string) (domain.Conversation, error) {
	record, err := s.gateway.Get(ctx, domain.RecordTypeConversation, conversationID)
	if err != nil {
		return domain.Conversation{}, chaterrors.Backend(err)
	}
	return domain.ConversationFromRecord(record), nil
}

func (s *ConversationService) FetchUserConversations(ctx context.Context) ([]domain.UserConversation, error) {
	records, err := s.gateway.Query(ctx, contract.RecordQuery{
		Type:    domain.RecordTypeUserConversation,
		OwnerID: s.userID,
	})
	if err != nil {
		return nil, chaterrors.Backend(err)
	}
	ucs := make([]domain.UserConversation, 0, len(records))
	for _, record := range records {
		ucs = append(ucs, domain.UserConversationFromRecord(record))
	}
	return ucs, nil
}

func (s *ConversationService) FetchUserConversation(ctx context.Context, conversationID string) (domain.UserConversation, error) {
	id := domain.UserConversationID(s.userID, conversationID)
	record, err := s.gateway.Get(ctx, domain.RecordTypeUserConversation, id)
	if err != nil {
		return domain.UserConversation{}, chaterrors.Backend(err)
	}
	return domain.UserConversationFromRecord(record), nil
}

// Membership mutation: set union or difference against the in-memory
// snapshot, then one save. Adding a present id or removing an absent
// one is a no-op for that id.

func (s *ConversationService) AddParticipants(ctx context.Context, userIDs []string, conversation domain.Conversation) (domain.Conversation, error) {
	previous := conversation.ParticipantIDs
	conversation.ParticipantIDs = lo.Union(conversation.ParticipantIDs, userIDs)
	return s.saveAndSync(ctx, conversation, previous)
}

func (s *ConversationService) RemoveParticipants(ctx context.Context, userIDs []string, conversation domain.Conversation) (domain.Conversation, error) {
	previous := conversation.ParticipantIDs
	remaining := lo.Without(conversation.ParticipantIDs, userIDs...)
	if len(remaining) == 0 {
		return domain.Conversation{}, chaterrors.Invariant("remove participants: %w", chaterrors.ErrLastParticipant)
	}
	conversation.ParticipantIDs = remaining
	return s.saveAndSync(ctx, conversation, previous)
}

func (s *ConversationService) AddAdmins(ctx context.Context, userIDs []string, conversation domain.Conversation) (domain.Conversation, error) {
	conversation.AdminIDs = lo.Union(conversation.AdminIDs, userIDs)
	return s.saveAndSync(ctx, conversation, conversation.ParticipantIDs)
}

func (s *ConversationService) RemoveAdmins(ctx context.Context, userIDs []string, conversation domain.Conversation) (domain.Conversation, error) {
	conversation.AdminIDs = lo.Without(conversation.AdminIDs, userIDs...)
	return s.saveAndSync(ctx, conversation, conversation.ParticipantIDs)
}
