//go:generate go run go.uber.org/mock/mockgen -source=channel_service.go -destination=../mocks/mock_channel_service.go -package=mocks
package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"chatkit/contract"
	"chatkit/domain"
	"chatkit/domain/event"
	chaterrors "chatkit/errors"
	"chatkit/projection"
)

type IChannelService interface {
	GetOrCreate(ctx context.Context) (domain.UserChannel, error)
	Subscribe(ctx context.Context, handler contract.EventHandler) (func(), error)
	Close()
}

// ChannelService owns the user's notification channel: lazy creation,
// subscription, and routing of inbound events into the local
// projection. It lives as long as the authenticated session; Close
// tears every subscription down on logout.
type ChannelService struct {
	gateway contract.IRecordGateway
	pubsub  contract.IPubSub
	state   *projection.State
	log     *slog.Logger
	userID  string

	mu      sync.Mutex
	cancels []func()
}

func NewChannelService(gateway contract.IRecordGateway, pubsub contract.IPubSub, state *projection.State, log *slog.Logger, userID string) *ChannelService {
	return &ChannelService{gateway: gateway, pubsub: pubsub, state: state, log: log, userID: userID}
}

// GetOrCreate returns the user's channel, minting one on first use.
// Fetching an existing channel returns the same name; a concurrent
// first creation loses the save race and re-reads the winner.
func (s *ChannelService) GetOrCreate(ctx context.Context) (domain.UserChannel, error) {
	record, err := s.gateway.Get(ctx, domain.RecordTypeUserChannel, s.userID)
	if err == nil {
		return domain.UserChannelFromRecord(record), nil
	}
	if !errors.Is(err, chaterrors.ErrNotFound) {
		return domain.UserChannel{}, chaterrors.Backend(err)
	}

	channel := domain.UserChannel{UserID: s.userID, Name: uuid.NewString()}
	saved, err := s.gateway.Save(ctx, channel.ToRecord())
	if chaterrors.IsKind(err, chaterrors.KindConflict) {
		record, err := s.gateway.Get(ctx, domain.RecordTypeUserChannel, s.userID)
		if err != nil {
			return domain.UserChannel{}, chaterrors.Backend(err)
		}
		return domain.UserChannelFromRecord(record), nil
	}
	if err != nil {
		return domain.UserChannel{}, chaterrors.Backend(err)
	}
	return domain.UserChannelFromRecord(saved), nil
}

// Subscribe attaches a handler to the user's channel. Every inbound
// payload is decoded and folded into the projection before the handler
// sees it; undecodable payloads are logged and dropped. The handler may
// be nil when only the projection matters.
func (s *ChannelService) Subscribe(ctx context.Context, handler contract.EventHandler) (func(), error) {
	channel, err := s.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	cancel, err := s.pubsub.Subscribe(channel.Name, func(payload map[string]any) {
		s.route(payload)
		if handler != nil {
			handler(payload)
		}
	})
	if err != nil {
		return nil, chaterrors.Backend(err)
	}
	s.mu.Lock()
	s.cancels = append(s.cancels, cancel)
	s.mu.Unlock()
	return cancel, nil
}

func (s *ChannelService) route(payload map[string]any) {
	e, err := event.Decode(payload)
	if err != nil {
		s.log.Warn("dropping undecodable channel event", "error", err)
		return
	}
	if s.state != nil {
		s.state.Apply(e)
	}
}

func (s *ChannelService) Close() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}
