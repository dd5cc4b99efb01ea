package domain

import "time"

// Commands validated at the service boundary before any record is
// touched. Tags follow go-playground/validator.

type CreateConversationCommand struct {
	ParticipantIDs []string `validate:"required,min=1,dive,required"`
	AdminIDs       []string `validate:"omitempty,dive,required"`
	Title          string
	Metadata       map[string]any
	Distinct       bool
}

type FetchMessagesCommand struct {
	ConversationID string `validate:"required"`
	Limit          int    `validate:"required,min=1"`
	// BeforeTime is the pagination cursor: only messages strictly older
	// are returned. Zero means "newest page".
	BeforeTime time.Time
}
