package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"chatspark/internal/domain"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

const conversationColumns = `id, user_lo, user_hi, last_message_id, created_at, updated_at`

// GetOrCreate resolves the conversation for the pair, creating it on first
// contact. ON CONFLICT DO NOTHING keeps concurrent first sends from racing
// into two rows; the loser falls through to the select.
func (r *ConversationRepo) GetOrCreate(ctx context.Context, a, b int64) (*domain.Conversation, error) {
	lo, hi := domain.NormalizePair(a, b)
	if lo == hi {
		return nil, domain.ErrInvalidInput
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	c := &domain.Conversation{}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO conversations (user_lo, user_hi, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_lo, user_hi) DO NOTHING
		RETURNING `+conversationColumns+`
	`, lo, hi).Scan(&c.ID, &c.UserLo, &c.UserHi, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt)

	switch {
	case err == sql.ErrNoRows:
		// Already exists; fetch it.
		err = tx.QueryRowContext(ctx, `
			SELECT `+conversationColumns+`
			FROM conversations WHERE user_lo = $1 AND user_hi = $2
		`, lo, hi).Scan(&c.ID, &c.UserLo, &c.UserHi, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("select existing conversation: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("insert conversation: %w", err)
	default:
		for _, uid := range []int64{lo, hi} {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO conversation_participants (conversation_id, user_id)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, c.ID, uid); err != nil {
				return nil, fmt.Errorf("insert participant %d: %w", uid, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := r.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations WHERE id = $1
	`, id).Scan(&c.ID, &c.UserLo, &c.UserHi, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE user_lo = $1 OR user_hi = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.Conversation
	for rows.Next() {
		c := &domain.Conversation{}
		if err := rows.Scan(&c.ID, &c.UserLo, &c.UserHi, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $1 AND user_id = $2
		)
	`, conversationID, userID).Scan(&ok)
	return ok, err
}

func (r *ConversationRepo) SetLastMessage(ctx context.Context, conversationID, messageID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET last_message_id = $2, updated_at = NOW()
		WHERE id = $1
	`, conversationID, messageID)
	return err
}

func (r *ConversationRepo) IncrementUnread(ctx context.Context, conversationID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversation_participants SET unread_count = unread_count + 1
		WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID)
	return err
}

func (r *ConversationRepo) ResetUnread(ctx context.Context, conversationID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversation_participants SET unread_count = 0, last_read_at = NOW()
		WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID)
	return err
}

func (r *ConversationRepo) UnreadCount(ctx context.Context, conversationID, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT unread_count FROM conversation_participants
		WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, domain.ErrNotFound
	}
	return count, err
}
