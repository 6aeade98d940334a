package model

// ChatMessage is a single room-scoped chat message. Field names follow
// the wire format of the chat service; Timestamp stays a string because
// ordering is receipt order, never client clock order.
type ChatMessage struct {
	ID        int64  `json:"id,omitempty"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Room      string `json:"room"`
}

// MessageHistory is the payload of a paged history response.
type MessageHistory struct {
	Messages    []ChatMessage `json:"messages"`
	Total       int           `json:"total"`
	Pages       int           `json:"pages"`
	CurrentPage int           `json:"current_page"`
	HasNext     bool          `json:"has_next"`
	HasPrev     bool          `json:"has_prev"`
}

// PresenceEvent is a join/leave/disconnect/typing notification for a room.
type PresenceEvent struct {
	Event    string `json:"event"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
	Room     string `json:"room,omitempty"`
	IsTyping bool   `json:"is_typing,omitempty"`
	Message  string `json:"message,omitempty"`
}
