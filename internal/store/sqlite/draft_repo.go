package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chatspark/internal/domain"
)

type DraftRepo struct {
	db *sql.DB
}

func NewDraftRepo(db *sql.DB) *DraftRepo {
	return &DraftRepo{db: db}
}

var _ domain.DraftRepository = (*DraftRepo)(nil)

const draftColumns = `id, sender_id, receiver_id, content, send_at, queued, queued_at, sent, sent_at, created_at`

func (r *DraftRepo) CreateBatch(ctx context.Context, drafts []*domain.Draft) error {
	if len(drafts) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, d := range drafts {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO drafts (sender_id, receiver_id, content, send_at, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, d.SenderID, d.ReceiverID, d.Content, d.SendAt.UTC(), now)
		if err != nil {
			return fmt.Errorf("insert draft: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		d.ID = id
		d.CreatedAt = now
	}

	return tx.Commit()
}

func (r *DraftRepo) GetByID(ctx context.Context, id int64) (*domain.Draft, error) {
	d := &domain.Draft{}
	err := r.db.QueryRowContext(ctx, `
		SELECT `+draftColumns+` FROM drafts WHERE id = ?
	`, id).Scan(
		&d.ID, &d.SenderID, &d.ReceiverID, &d.Content, &d.SendAt,
		&d.Queued, &d.QueuedAt, &d.Sent, &d.SentAt, &d.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return d, nil
}

func (r *DraftRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.Draft, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE drafts SET queued = TRUE, queued_at = ?
		WHERE id IN (
			SELECT id FROM drafts
			WHERE send_at <= ? AND queued = FALSE AND sent = FALSE
			ORDER BY send_at
			LIMIT ?
		)
		RETURNING `+draftColumns+`
	`, now.UTC(), now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("claim due drafts: %w", err)
	}
	defer rows.Close()

	var res []*domain.Draft
	for rows.Next() {
		d := &domain.Draft{}
		if err := rows.Scan(
			&d.ID, &d.SenderID, &d.ReceiverID, &d.Content, &d.SendAt,
			&d.Queued, &d.QueuedAt, &d.Sent, &d.SentAt, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r *DraftRepo) ReleaseClaim(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE drafts SET queued = FALSE, queued_at = NULL
		WHERE id = ? AND sent = FALSE
	`, id)
	return err
}

func (r *DraftRepo) MarkSent(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE drafts SET sent = TRUE, sent_at = ?
		WHERE id = ? AND queued = TRUE
	`, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
