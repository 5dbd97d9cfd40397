package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

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
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, receiver_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ConversationID, m.SenderID, m.ReceiverID, m.Content, now)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	m.ID = id
	m.CreatedAt = now
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	m := &domain.Message{}
	err := r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+` FROM messages WHERE id = ?
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
		WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
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
		UPDATE messages SET read_at = ?
		WHERE conversation_id = ? AND receiver_id = ? AND read_at IS NULL
	`, time.Now().UTC(), conversationID, readerID)
	return err
}
