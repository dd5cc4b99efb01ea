// Package projection keeps a session-local view of conversations:
// unread counters and cached message timelines. Both direct call
// results and channel events funnel through Apply, so the two paths can
// never diverge. Applying the same event twice is a no-op.
package projection

import (
	"sort"
	"sync"

	"chatkit/domain"
	"chatkit/domain/event"
)

type applied struct {
	revision uint64
	deleted  bool
}

// State is safe for concurrent use; every mutation is applied atomically
// under one lock.
type State struct {
	mu        sync.RWMutex
	userID    string
	seen      map[string]applied
	unread    map[string]int
	timelines map[string][]domain.Message
}

func NewState(userID string) *State {
	return &State{
		userID:    userID,
		seen:      make(map[string]applied),
		unread:    make(map[string]int),
		timelines: make(map[string][]domain.Message),
	}
}

// Apply folds one record mutation into the local view.
func (s *State) Apply(e event.RecordEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.alreadyApplied(e) {
		return
	}
	s.seen[e.Record.Type+":"+e.Record.ID] = applied{
		revision: e.Record.Revision,
		deleted:  e.Action == event.ActionDeleted,
	}

	switch e.Record.Type {
	case domain.RecordTypeMessage:
		s.applyMessage(e)
	case domain.RecordTypeUserConversation:
		s.applyUserConversation(e)
	case domain.RecordTypeConversation:
		if e.Action == event.ActionDeleted {
			delete(s.unread, e.Record.ID)
			delete(s.timelines, e.Record.ID)
		}
	}
}

func (s *State) alreadyApplied(e event.RecordEvent) bool {
	previous, ok := s.seen[e.Record.Type+":"+e.Record.ID]
	if !ok {
		return false
	}
	if e.Record.Revision != previous.revision {
		return e.Record.Revision < previous.revision
	}
	return previous.deleted == (e.Action == event.ActionDeleted)
}

func (s *State) applyMessage(e event.RecordEvent) {
	message := domain.MessageFromRecord(e.Record)
	timeline := s.timelines[message.ConversationID]

	switch e.Action {
	case event.ActionCreated:
		timeline = append(timeline, message)
		sort.SliceStable(timeline, func(i, j int) bool {
			return timeline[i].CreatedAt.After(timeline[j].CreatedAt)
		})
		s.timelines[message.ConversationID] = timeline
		if message.AuthorID != s.userID && !message.Deleted {
			s.unread[message.ConversationID]++
		}
	case event.ActionUpdated, event.ActionDeleted:
		for i := range timeline {
			if timeline[i].ID == message.ID {
				if e.Action == event.ActionDeleted {
					message.Deleted = true
				}
				timeline[i] = message
				break
			}
		}
	}
}

// applyUserConversation trusts the server-side counter: the record's
// unread_count is authoritative whenever a user conversation of this
// session's user changes.
func (s *State) applyUserConversation(e event.RecordEvent) {
	if e.Record.OwnerID != s.userID {
		return
	}
	uc := domain.UserConversationFromRecord(e.Record)
	if e.Action == event.ActionDeleted {
		delete(s.unread, uc.ConversationID)
		return
	}
	s.unread[uc.ConversationID] = uc.UnreadCount
}

func (s *State) UnreadCount(conversationID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread[conversationID]
}

// TotalUnread aggregates the cached counters into the fixed-key shape
// of the unread query.
func (s *State) TotalUnread() domain.UnreadCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := domain.UnreadCounts{
		domain.MessageUnreadCountKey:      0,
		domain.ConversationUnreadCountKey: 0,
	}
	for _, unread := range s.unread {
		if unread == 0 {
			continue
		}
		counts[domain.MessageUnreadCountKey] += unread
		counts[domain.ConversationUnreadCountKey]++
	}
	return counts
}

// Timeline returns the cached messages of a conversation, newest first.
func (s *State) Timeline(conversationID string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Message(nil), s.timelines[conversationID]...)
}
