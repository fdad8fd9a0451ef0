package models

import (
	"fmt"
	"strings"
	"time"
)

// ConversationType distinguishes direct conversations from group conversations.
type ConversationType string

const (
	ConversationOneToOne ConversationType = "one_to_one"
	ConversationGroup    ConversationType = "group"
)

// MaxMessageLength is the upper bound on message content, in characters.
const MaxMessageLength = 5000

// Conversation is a thread of messages between two or more users.
// At most one one_to_one conversation exists per unordered pair of users.
type Conversation struct {
	ID                   uint             `gorm:"primaryKey" json:"id"`
	Type                 ConversationType `gorm:"type:varchar(20);not null;index" json:"type"`
	GroupName            string           `gorm:"size:100" json:"group_name,omitempty"`
	GroupAdminID         *uint            `json:"group_admin_id,omitempty"`
	PairKey              *string          `gorm:"size:64;uniqueIndex" json:"-"`
	LastMessageTimestamp time.Time        `gorm:"not null;index" json:"last_message_timestamp"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`

	Participants []UserSummary `gorm:"-" json:"participants,omitempty"`
	LastMessage  *Message      `gorm:"-" json:"last_message,omitempty"`
	UnreadCount  int64         `gorm:"-" json:"unread_count"`
}

// ConversationParticipant is the membership row linking users to conversations.
type ConversationParticipant struct {
	ConversationID uint      `gorm:"primaryKey" json:"conversation_id"`
	UserID         uint      `gorm:"primaryKey;index" json:"user_id"`
	JoinedAt       time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// Message is a single immutable chat message.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;index:idx_messages_conversation_created,priority:1" json:"conversation_id"`
	SenderID       uint      `gorm:"not null;index" json:"sender_id"`
	Sender         *User     `gorm:"foreignKey:SenderID" json:"-"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `gorm:"index:idx_messages_conversation_created,priority:2" json:"created_at"`

	SenderSummary *UserSummary `gorm:"-" json:"sender,omitempty"`
}

// MessageRead records that a user has read a message. A missing row means unread.
type MessageRead struct {
	MessageID uint      `gorm:"primaryKey" json:"message_id"`
	UserID    uint      `gorm:"primaryKey;index" json:"user_id"`
	ReadAt    time.Time `gorm:"not null" json:"read_at"`
}

// ContentLength returns the number of characters in s after trimming surrounding whitespace.
func ContentLength(s string) int {
	return len([]rune(strings.TrimSpace(s)))
}

// DirectPairKey is the order-independent key identifying the one_to_one conversation between a and b.
func DirectPairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}
