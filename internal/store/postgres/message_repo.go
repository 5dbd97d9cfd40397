package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"chatspark/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

const messageColumns = `id, conversation_id, sender_id, receiver_id, content, created_at, read_at, is_edited`

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, receiver_id, content, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`, m.ConversationID, m.SenderID, m.ReceiverID, m.Content).Scan(&m.ID, &m.CreatedAt)
}

func (r *MessageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	m := &domain.Message{}
	err := r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+` FROM messages WHERE id = $1
	`, id).Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID,
		&m.Content, &m.CreatedAt, &m.ReadAt, &m.IsEdited,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID int64, limit int) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		if err := rows.Scan(
			&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID,
			&m.Content, &m.CreatedAt, &m.ReadAt, &m.IsEdited,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r *MessageRepo) MarkAllRead(ctx context.Context, conversationID, readerID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET read_at = NOW()
		WHERE conversation_id = $1 AND receiver_id = $2 AND read_at IS NULL
	`, conversationID, readerID)
	return err
}
