// ABOUTME: Shared vocabulary for the chat client: messages, rows, summaries, agent requests
// ABOUTME: Rows are the wire/persistence shape; Messages are what a session timeline holds

package chat

import (
	"time"
)

// MaxTitleRunes bounds the title of a conversation summary.
const MaxTitleRunes = 100

// headerTitleRunes bounds the title shown above the active timeline.
const headerTitleRunes = 50

// DefaultTitle is shown for a session with no messages yet.
const DefaultTitle = "New Chat"

// Role identifies who authored a message in a timeline.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// MessageType is the author tag carried by persisted and realtime rows.
type MessageType string

const (
	TypeHuman MessageType = "human"
	TypeAI    MessageType = "ai"
)

// Role maps a row type onto a timeline role.
func (t MessageType) Role() (Role, error) {
	switch t {
	case TypeHuman:
		return RoleUser, nil
	case TypeAI:
		return RoleAgent, nil
	default:
		return "", ErrUnknownMessageType
	}
}

// TypeFor is the inverse of MessageType.Role.
func TypeFor(r Role) MessageType {
	if r == RoleAgent {
		return TypeAI
	}
	return TypeHuman
}

// Message is a single immutable entry in a session timeline.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Payload is the message body nested inside a Row.
type Payload struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
}

// Row is one persisted message as delivered by the history store and the
// realtime feed. Seq is the store's insertion sequence and is zero for rows
// that have not been persisted.
type Row struct {
	Seq       int64     `json:"seq,omitempty"`
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Message   Payload   `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ToMessage converts a row into a timeline message.
func (r Row) ToMessage() (Message, error) {
	role, err := r.Message.Type.Role()
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:        r.ID,
		Role:      role,
		Content:   r.Message.Content,
		CreatedAt: r.CreatedAt,
	}, nil
}

// RowsToMessages converts rows in order, skipping rows of unknown type.
func RowsToMessages(rows []Row) []Message {
	msgs := make([]Message, 0, len(rows))
	for _, r := range rows {
		m, err := r.ToMessage()
		if err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs
}

// Conversation is the index entry for one historical session.
type Conversation struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// AgentRequest is the outbound call made to the remote agent endpoint.
// The agent's answer never comes back on this call; it arrives later as a row.
type AgentRequest struct {
	Query     string `json:"query"`
	UserID    string `json:"user_id"`
	RequestID string `json:"request_id"`
	SessionID string `json:"session_id"`
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// HeaderTitle is the title displayed above a timeline: the first message
// clipped to 50 runes with a trailing ellipsis, or DefaultTitle when empty.
func HeaderTitle(msgs []Message) string {
	if len(msgs) == 0 {
		return DefaultTitle
	}
	return Truncate(msgs[0].Content, headerTitleRunes) + "..."
}
