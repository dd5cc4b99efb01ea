package domain

// Keys of the aggregate unread-count response.
const (
	MessageUnreadCountKey      = "message"
	ConversationUnreadCountKey = "conversation"
)

// UnreadCounts is the fixed-key mapping returned by the total unread
// query: number of messages unread across all conversations and number
// of conversations holding at least one of them.
type UnreadCounts map[string]int
