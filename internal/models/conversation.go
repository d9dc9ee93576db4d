package models

import "time"

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Valid reports whether s is a known sender.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderBot
}

// Conversation is one chat session.
type Conversation struct {
	ID           string     `json:"id" db:"id"`
	StartTime    time.Time  `json:"start_time" db:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty" db:"end_time"`
	MessageCount int        `json:"message_count,omitempty" db:"-"`
}

// Message is a single persisted turn. Messages are immutable once created.
type Message struct {
	ID              string    `json:"id" db:"id"`
	ConversationID  string    `json:"conversation_id" db:"conversation_id"`
	Sender          Sender    `json:"sender" db:"sender"`
	Content         string    `json:"content" db:"content"`
	ClusterID       *int      `json:"cluster_id,omitempty" db:"cluster_id"`
	ConfidenceScore *float64  `json:"confidence_score,omitempty" db:"confidence_score"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
