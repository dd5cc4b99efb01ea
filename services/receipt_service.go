//go:generate go run go.uber.org/mock/mockgen -source=receipt_service.go -destination=../mocks/mock_receipt_service.go -package=mocks
package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"chatkit/contract"
	"chatkit/domain"
	"chatkit/domain/event"
	chaterrors "chatkit/errors"
	"chatkit/projection"
)

type IReceiptService interface {
	MarkDelivered(ctx context.Context, messages []domain.Message) error
	MarkDeliveredByID(ctx context.Context, messageIDs []string) error
	MarkRead(ctx context.Context, messages []domain.Message) error
	MarkReadByID(ctx context.Context, messageIDs []string) error
	FetchReceipts(ctx context.Context, message domain.Message) ([]domain.Receipt, error)
	MarkLastRead(ctx context.Context, message domain.Message, uc domain.UserConversation) (domain.UserConversation, error)
	FetchUnreadCount(ctx context.Context, uc domain.UserConversation) (int, error)
	FetchTotalUnreadCount(ctx context.Context) (domain.UnreadCounts, error)
}

// ReceiptService tracks per-recipient delivery state and derives unread
// counts. Receipt statuses are monotonic: marking a read message as
// delivered is a silent no-op, never a regression.
type ReceiptService struct {
	gateway contract.IRecordGateway
	state   *projection.State
	log     *slog.Logger
	userID  string
	now     func() time.Time
}

func NewReceiptService(gateway contract.IRecordGateway, state *projection.State, log *slog.Logger, userID string) *ReceiptService {
	return &ReceiptService{
		gateway: gateway,
		state:   state,
		log:     log,
		userID:  userID,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *ReceiptService) MarkDelivered(ctx context.Context, messages []domain.Message) error {
	return s.mark(ctx, messageIDs(messages), domain.ReceiptStatusDelivered)
}

func (s *ReceiptService) MarkDeliveredByID(ctx context.Context, ids []string) error {
	return s.mark(ctx, ids, domain.ReceiptStatusDelivered)
}

func (s *ReceiptService) MarkRead(ctx context.Context, messages []domain.Message) error {
	return s.mark(ctx, messageIDs(messages), domain.ReceiptStatusRead)
}

func (s *ReceiptService) MarkReadByID(ctx context.Context, ids []string) error {
	return s.mark(ctx, ids, domain.ReceiptStatusRead)
}

func messageIDs(messages []domain.Message) []string {
	return lo.Map(messages, func(message domain.Message, _ int) string {
		return message.ID
	})
}

// mark writes one receipt per message for the acting user. Marking is
// idempotent per (message, user): re-marking the same status changes
// nothing, and a status never moves backwards.
func (s *ReceiptService) mark(ctx context.Context, ids []string, status domain.ReceiptStatus) error {
	if len(ids) == 0 {
		return chaterrors.Validation("mark receipts: no messages")
	}
	now := s.now()
	for _, id := range lo.Uniq(ids) {
		receipt, err := s.fetchOwn(ctx, id)
		switch {
		case errors.Is(err, chaterrors.ErrNotFound):
			receipt = domain.Receipt{MessageID: id, UserID: s.userID, Status: status, DeliveredAt: now}
			if status == domain.ReceiptStatusRead {
				receipt.ReadAt = now
			}
		case err != nil:
			return chaterrors.Backend(err)
		default:
			if !status.Supersedes(receipt.Status) {
				continue
			}
			receipt.Status = status
			receipt.ReadAt = now
		}
		if _, err := s.gateway.Save(ctx, receipt.ToRecord()); err != nil {
			return chaterrors.Backend(err)
		}
	}
	return nil
}

func (s *ReceiptService) fetchOwn(ctx context.Context, messageID string) (domain.Receipt, error) {
	record, err := s.gateway.Get(ctx, domain.RecordTypeReceipt, domain.ReceiptID(messageID, s.userID))
	if err != nil {
		return domain.Receipt{}, err
	}
	return domain.ReceiptFromRecord(record), nil
}

// FetchReceipts returns every recipient's receipt for a message.
func (s *ReceiptService) FetchReceipts(ctx context.Context, message domain.Message) ([]domain.Receipt, error) {
	if message.ID == "" {
		return nil, chaterrors.Validation("fetch receipts: message has no id")
	}
	records, err := s.gateway.Query(ctx, contract.RecordQuery{
		Type: domain.RecordTypeReceipt,
		Filter: func(record domain.Record) bool {
			return record.String("message_id") == message.ID
		},
	})
	if err != nil {
		return nil, chaterrors.Backend(err)
	}
	receipts := make([]domain.Receipt, 0, len(records))
	for _, record := range records {
		receipts = append(receipts, domain.ReceiptFromRecord(record))
	}
	return receipts, nil
}

// MarkLastRead moves the user's last-read pointer and recomputes the
// conversation's unread count. It does not write receipts; other
// participants observe nothing.
func (s *ReceiptService) MarkLastRead(ctx context.Context, message domain.Message, uc domain.UserConversation) (domain.UserConversation, error) {
	if message.ID == "" || message.CreatedAt.IsZero() {
		return domain.UserConversation{}, chaterrors.Validation("mark last read: message was never saved")
	}
	uc.LastReadMessageID = message.ID
	uc.LastReadAt = message.CreatedAt
	unread, err := s.computeUnread(ctx, uc)
	if err != nil {
		return domain.UserConversation{}, err
	}
	uc.UnreadCount = unread
	record, err := s.gateway.Save(ctx, uc.ToRecord())
	if err != nil {
		return domain.UserConversation{}, chaterrors.Backend(err)
	}
	if s.state != nil {
		s.state.Apply(event.RecordEvent{Action: event.ActionUpdated, Record: record})
	}
	return domain.UserConversationFromRecord(record), nil
}

func (s *ReceiptService) FetchUnreadCount(ctx context.Context, uc domain.UserConversation) (int, error) {
	return s.computeUnread(ctx, uc)
}

// computeUnread counts messages the user still has to read: authored by
// others, newer than the last-read pointer, not deleted, and without a
// read receipt from this user.
func (s *ReceiptService) computeUnread(ctx context.Context, uc domain.UserConversation) (int, error) {
	records, err := s.gateway.Query(ctx, contract.RecordQuery{
		Type:           domain.RecordTypeMessage,
		ConversationID: uc.ConversationID,
	})
	if err != nil {
		return 0, chaterrors.Backend(err)
	}
	unread := 0
	for _, record := range records {
		message := domain.MessageFromRecord(record)
		if message.AuthorID == s.userID || message.Deleted {
			continue
		}
		if !uc.LastReadAt.IsZero() && !message.CreatedAt.After(uc.LastReadAt) {
			continue
		}
		receipt, err := s.fetchOwn(ctx, message.ID)
		if err != nil && !errors.Is(err, chaterrors.ErrNotFound) {
			return 0, chaterrors.Backend(err)
		}
		if err == nil && receipt.Status == domain.ReceiptStatusRead {
			continue
		}
		unread++
	}
	return unread, nil
}

// FetchTotalUnreadCount aggregates across all of the user's
// conversations: total unread messages plus the number of conversations
// still holding any.
func (s *ReceiptService) FetchTotalUnreadCount(ctx context.Context) (domain.UnreadCounts, error) {
	records, err := s.gateway.Query(ctx, contract.RecordQuery{
		Type:    domain.RecordTypeUserConversation,
		OwnerID: s.userID,
	})
	if err != nil {
		return nil, chaterrors.Backend(err)
	}
	counts := domain.UnreadCounts{
		domain.MessageUnreadCountKey:      0,
		domain.ConversationUnreadCountKey: 0,
	}
	for _, record := range records {
		unread, err := s.computeUnread(ctx, domain.UserConversationFromRecord(record))
		if err != nil {
			return nil, err
		}
		if unread == 0 {
			continue
		}
		counts[domain.MessageUnreadCountKey] += unread
		counts[domain.ConversationUnreadCountKey]++
	}
	return counts, nil
}
