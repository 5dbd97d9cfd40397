package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatspark/internal/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(":memory:")
	require.NoError(t, err)
	// One connection keeps every query on the same in-memory database.
	db.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *sql.DB, username string) *domain.User {
	t.Helper()

	u := &domain.User{Username: username}
	require.NoError(t, NewUserRepo(db).Create(context.Background(), u))
	return u
}

func TestUserRepo(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewUserRepo(db)

	alice := seedUser(t, db, "alice")

	t.Run("GetByID", func(t *testing.T) {
		got, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
		assert.True(t, got.IsActive)
	})

	t.Run("GetByIDNotFound", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 9999)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ListActiveSince", func(t *testing.T) {
		users, err := repo.ListActiveSince(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Len(t, users, 1)

		users, err = repo.ListActiveSince(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, users)
	})
}

func TestConversationRepoPairNormalization(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewConversationRepo(db)

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	c1, err := repo.GetOrCreate(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	c2, err := repo.GetOrCreate(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	assert.Equal(t, c1.ID, c2.ID)
	assert.Less(t, c1.UserLo, c1.UserHi)

	for _, uid := range []int64{alice.ID, bob.ID} {
		ok, err := repo.IsParticipant(ctx, c1.ID, uid)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	_, err = repo.GetOrCreate(ctx, alice.ID, alice.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUnreadCounter(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	convRepo := NewConversationRepo(db)
	msgRepo := NewMessageRepo(db)

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	conv, err := convRepo.GetOrCreate(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		msg := &domain.Message{
			ConversationID: conv.ID,
			SenderID:       alice.ID,
			ReceiverID:     bob.ID,
			Content:        "hello",
		}
		require.NoError(t, msgRepo.Create(ctx, msg))
		require.NoError(t, convRepo.IncrementUnread(ctx, conv.ID, bob.ID))
	}

	n, err := convRepo.UnreadCount(ctx, conv.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, msgRepo.MarkAllRead(ctx, conv.ID, bob.ID))
	require.NoError(t, convRepo.ResetUnread(ctx, conv.ID, bob.ID))

	n, err = convRepo.UnreadCount(ctx, conv.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	msgs, err := msgRepo.ListForConversation(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.NotNil(t, m.ReadAt)
	}
}

func TestDraftClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewDraftRepo(db)

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	now := time.Now().UTC()
	due := make([]*domain.Draft, 0, 5)
	for i := 0; i < 5; i++ {
		due = append(due, &domain.Draft{
			SenderID:   alice.ID,
			ReceiverID: bob.ID,
			Content:    "scheduled hello",
			SendAt:     now.Add(-time.Minute),
		})
	}
	require.NoError(t, repo.CreateBatch(ctx, due))

	// Claim is capped at the limit.
	claimed, err := repo.ClaimDue(ctx, now, 3)
	require.NoError(t, err)
	assert.Len(t, claimed, 3)
	for _, d := range claimed {
		assert.True(t, d.Queued)
		assert.NotNil(t, d.QueuedAt)
	}

	// Claimed drafts are not claimed again; the remainder is.
	rest, err := repo.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	// A released draft becomes claimable again.
	require.NoError(t, repo.ReleaseClaim(ctx, claimed[0].ID))
	again, err := repo.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, claimed[0].ID, again[0].ID)

	// MarkSent requires the queued state.
	require.NoError(t, repo.MarkSent(ctx, claimed[1].ID))
	sent, err := repo.GetByID(ctx, claimed[1].ID)
	require.NoError(t, err)
	assert.True(t, sent.Sent)
	assert.NotNil(t, sent.SentAt)

	require.NoError(t, repo.ReleaseClaim(ctx, claimed[2].ID))
	err = repo.MarkSent(ctx, claimed[2].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// A sent draft cannot be released back.
	require.NoError(t, repo.ReleaseClaim(ctx, claimed[1].ID))
	still, err := repo.GetByID(ctx, claimed[1].ID)
	require.NoError(t, err)
	assert.True(t, still.Sent)
	assert.True(t, still.Queued)
}

func TestDraftClaimSkipsFuture(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewDraftRepo(db)

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	now := time.Now().UTC()
	require.NoError(t, repo.CreateBatch(ctx, []*domain.Draft{{
		SenderID:   alice.ID,
		ReceiverID: bob.ID,
		Content:    "later",
		SendAt:     now.Add(time.Hour),
	}}))

	claimed, err := repo.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	claimed, err = repo.ClaimDue(ctx, now.Add(2*time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, claimed, 1)
}
