package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the chatspark schema.
func Migrate(db *sql.DB) error {
	stmts := []string{
		// Users (owned by the auth/profile subsystem; only the fields this
		// service reads are declared here)
		`CREATE TABLE IF NOT EXISTS users (
			id         BIGSERIAL   PRIMARY KEY,
			username   VARCHAR(50) UNIQUE NOT NULL,
			is_active  BOOLEAN     NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_seen  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Pairwise conversations; the (user_lo, user_hi) unique index is the
		// order-independence invariant
		`CREATE TABLE IF NOT EXISTS conversations (
			id              BIGSERIAL   PRIMARY KEY,
			user_lo         BIGINT      NOT NULL REFERENCES users(id),
			user_hi         BIGINT      NOT NULL REFERENCES users(id),
			last_message_id BIGINT,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT conversations_pair_ordered CHECK (user_lo < user_hi),
			CONSTRAINT conversations_pair_unique UNIQUE (user_lo, user_hi)
		)`,

		// Per-participant state: the unread counter lives here and is only
		// ever touched by atomic increments/resets
		`CREATE TABLE IF NOT EXISTS conversation_participants (
			conversation_id BIGINT NOT NULL REFERENCES conversations(id),
			user_id         BIGINT NOT NULL REFERENCES users(id),
			unread_count    INT    NOT NULL DEFAULT 0,
			last_read_at    TIMESTAMPTZ,
			PRIMARY KEY (conversation_id, user_id)
		)`,

		// Messages
		`CREATE TABLE IF NOT EXISTS messages (
			id              BIGSERIAL   PRIMARY KEY,
			conversation_id BIGINT      NOT NULL REFERENCES conversations(id),
			sender_id       BIGINT      NOT NULL REFERENCES users(id),
			receiver_id     BIGINT      NOT NULL REFERENCES users(id),
			content         TEXT        NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			read_at         TIMESTAMPTZ,
			is_edited       BOOLEAN     NOT NULL DEFAULT FALSE
		)`,

		// Scheduled drafts
		`CREATE TABLE IF NOT EXISTS drafts (
			id          BIGSERIAL   PRIMARY KEY,
			sender_id   BIGINT      NOT NULL REFERENCES users(id),
			receiver_id BIGINT      NOT NULL REFERENCES users(id),
			content     TEXT        NOT NULL,
			send_at     TIMESTAMPTZ NOT NULL,
			queued      BOOLEAN     NOT NULL DEFAULT FALSE,
			queued_at   TIMESTAMPTZ,
			sent        BOOLEAN     NOT NULL DEFAULT FALSE,
			sent_at     TIMESTAMPTZ,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_users_last_seen ON users(last_seen DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_conv_participants_user ON conversation_participants(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_created ON messages(conversation_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver_unread ON messages(receiver_id) WHERE read_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_drafts_due ON drafts(send_at) WHERE queued = FALSE AND sent = FALSE`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}
