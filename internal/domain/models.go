package domain

import "time"

// User represents an application user. The record is owned by the
// auth/profile subsystem; this service only reads it.
type User struct {
	ID        int64     `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	LastSeen  time.Time `db:"last_seen" json:"last_seen"`
}

// Conversation is a pairwise chat between two users. Participants are stored
// normalized (UserLo < UserHi) so (A,B) and (B,A) resolve to the same row.
type Conversation struct {
	ID            int64     `db:"id" json:"id"`
	UserLo        int64     `db:"user_lo" json:"user_lo"`
	UserHi        int64     `db:"user_hi" json:"user_hi"`
	LastMessageID *int64    `db:"last_message_id" json:"last_message_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// OtherUser returns the participant that is not userID.
func (c *Conversation) OtherUser(userID int64) int64 {
	if c.UserLo == userID {
		return c.UserHi
	}
	return c.UserLo
}

// NormalizePair orders a participant pair so the smaller id comes first.
func NormalizePair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// Message is a single chat message. Immutable after creation except for the
// read timestamp and the edited flag.
type Message struct {
	ID             int64      `db:"id" json:"id"`
	ConversationID int64      `db:"conversation_id" json:"conversation_id"`
	SenderID       int64      `db:"sender_id" json:"sender_id"`
	ReceiverID     int64      `db:"receiver_id" json:"receiver_id"`
	Content        string     `db:"content" json:"content"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	ReadAt         *time.Time `db:"read_at" json:"read_at,omitempty"`
	IsEdited       bool       `db:"is_edited" json:"is_edited"`
}

// Draft is a scheduled automated message. Its state machine is monotonic:
// created -> queued -> sent. Only the scheduler creates drafts, only the
// queuer moves them to queued, only the consumer moves them to sent.
type Draft struct {
	ID         int64      `db:"id" json:"id"`
	SenderID   int64      `db:"sender_id" json:"sender_id"`
	ReceiverID int64      `db:"receiver_id" json:"receiver_id"`
	Content    string     `db:"content" json:"content"`
	SendAt     time.Time  `db:"send_at" json:"send_at"`
	Queued     bool       `db:"queued" json:"queued"`
	QueuedAt   *time.Time `db:"queued_at" json:"queued_at,omitempty"`
	Sent       bool       `db:"sent" json:"sent"`
	SentAt     *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
