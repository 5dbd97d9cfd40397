package postgres

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

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO drafts (sender_id, receiver_id, content, send_at, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range drafts {
		if err := stmt.QueryRowContext(ctx, d.SenderID, d.ReceiverID, d.Content, d.SendAt).
			Scan(&d.ID, &d.CreatedAt); err != nil {
			return fmt.Errorf("insert draft: %w", err)
		}
	}

	return tx.Commit()
}

func (r *DraftRepo) GetByID(ctx context.Context, id int64) (*domain.Draft, error) {
	d := &domain.Draft{}
	err := r.db.QueryRowContext(ctx, `
		SELECT `+draftColumns+` FROM drafts WHERE id = $1
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

// ClaimDue is the queued transition: a single conditional update claims due
// drafts so an overlapping tick cannot observe and republish the same rows.
func (r *DraftRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.Draft, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE drafts SET queued = TRUE, queued_at = NOW()
		WHERE id IN (
			SELECT id FROM drafts
			WHERE send_at <= $1 AND queued = FALSE AND sent = FALSE
			ORDER BY send_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+draftColumns+`
	`, now, limit)
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
		WHERE id = $1 AND sent = FALSE
	`, id)
	return err
}

func (r *DraftRepo) MarkSent(ctx context.Context, id int64) error {
	// queued = TRUE guard keeps the state machine monotonic.
	res, err := r.db.ExecContext(ctx, `
		UPDATE drafts SET sent = TRUE, sent_at = NOW()
		WHERE id = $1 AND queued = TRUE
	`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
