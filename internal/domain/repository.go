package domain

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for users. The core reads
// users; Create exists for seeding and tests.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	ListActiveSince(ctx context.Context, since time.Time) ([]*User, error)
}

// ConversationRepository defines persistence operations for pairwise
// conversations and their per-participant unread counters.
type ConversationRepository interface {
	// GetOrCreate resolves the conversation for the (a,b) pair, creating it
	// (and its participant rows) when absent. Order-independent.
	GetOrCreate(ctx context.Context, a, b int64) (*Conversation, error)
	GetByID(ctx context.Context, id int64) (*Conversation, error)
	ListForUser(ctx context.Context, userID int64) ([]*Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
	SetLastMessage(ctx context.Context, conversationID, messageID int64) error
	// IncrementUnread atomically adds one to the participant's unread counter.
	IncrementUnread(ctx context.Context, conversationID, userID int64) error
	// ResetUnread atomically zeroes the participant's unread counter and
	// stamps last_read_at.
	ResetUnread(ctx context.Context, conversationID, userID int64) error
	UnreadCount(ctx context.Context, conversationID, userID int64) (int, error)
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id int64) (*Message, error)
	ListForConversation(ctx context.Context, conversationID int64, limit int) ([]*Message, error)
	// MarkAllRead stamps read_at on every unread message addressed to reader.
	MarkAllRead(ctx context.Context, conversationID, readerID int64) error
}

// DraftRepository defines persistence operations for scheduled drafts.
type DraftRepository interface {
	CreateBatch(ctx context.Context, drafts []*Draft) error
	GetByID(ctx context.Context, id int64) (*Draft, error)
	// ClaimDue atomically marks up to limit due, unqueued drafts as queued
	// and returns the claimed rows. A claim is the queued transition; there
	// is no separate mark step.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Draft, error)
	// ReleaseClaim reverts a claim after a failed publish so a later tick
	// can pick the draft up again. No-op once the draft is sent.
	ReleaseClaim(ctx context.Context, id int64) error
	MarkSent(ctx context.Context, id int64) error
}
