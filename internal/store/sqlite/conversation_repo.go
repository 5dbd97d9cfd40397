package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

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

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (user_lo, user_hi, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_lo, user_hi) DO NOTHING
	`, lo, hi, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}

	c := &domain.Conversation{}
	if err := tx.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations WHERE user_lo = ? AND user_hi = ?
	`, lo, hi).Scan(&c.ID, &c.UserLo, &c.UserHi, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("select conversation: %w", err)
	}

	if inserted > 0 {
		for _, uid := range []int64{lo, hi} {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO conversation_participants (conversation_id, user_id)
				VALUES (?, ?)
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
		SELECT `+conversationColumns+` FROM conversations WHERE id = ?
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
		WHERE user_lo = ? OR user_hi = ?
		ORDER BY updated_at DESC
	`, userID, userID)
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
			WHERE conversation_id = ? AND user_id = ?
		)
	`, conversationID, userID).Scan(&ok)
	return ok, err
}

func (r *ConversationRepo) SetLastMessage(ctx context.Context, conversationID, messageID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET last_message_id = ?, updated_at = ?
		WHERE id = ?
	`, messageID, time.Now().UTC(), conversationID)
	return err
}

func (r *ConversationRepo) IncrementUnread(ctx context.Context, conversationID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversation_participants SET unread_count = unread_count + 1
		WHERE conversation_id = ? AND user_id = ?
	`, conversationID, userID)
	return err
}

func (r *ConversationRepo) ResetUnread(ctx context.Context, conversationID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversation_participants SET unread_count = 0, last_read_at = ?
		WHERE conversation_id = ? AND user_id = ?
	`, time.Now().UTC(), conversationID, userID)
	return err
}

func (r *ConversationRepo) UnreadCount(ctx context.Context, conversationID, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT unread_count FROM conversation_participants
		WHERE conversation_id = ? AND user_id = ?
	`, conversationID, userID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, domain.ErrNotFound
	}
	return count, err
}
