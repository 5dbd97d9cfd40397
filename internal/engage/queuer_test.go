package engage

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"chatspark/internal/domain"
)

func claimedDrafts(ids ...int64) []*domain.Draft {
	now := time.Now()
	drafts := make([]*domain.Draft, 0, len(ids))
	for _, id := range ids {
		drafts = append(drafts, &domain.Draft{
			ID: id, SenderID: 1, ReceiverID: 2,
			Content: "hi", SendAt: now.Add(-time.Minute),
			Queued: true, QueuedAt: &now,
		})
	}
	return drafts
}

func TestQueuerRun(t *testing.T) {
	t.Run("PublishesClaimed", func(t *testing.T) {
		draftRepo := new(MockDraftRepo)
		pub := &fakePublisher{}
		q := NewQueuer(draftRepo, pub, 100, zerolog.Nop())

		draftRepo.On("ClaimDue", mock.Anything, mock.Anything, 100).
			Return(claimedDrafts(1, 2, 3), nil)

		err := q.Run(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3}, pub.published)
		draftRepo.AssertNotCalled(t, "ReleaseClaim", mock.Anything, mock.Anything)
	})

	t.Run("BatchSizePassedToClaim", func(t *testing.T) {
		draftRepo := new(MockDraftRepo)
		q := NewQueuer(draftRepo, &fakePublisher{}, 25, zerolog.Nop())

		draftRepo.On("ClaimDue", mock.Anything, mock.Anything, 25).
			Return(claimedDrafts(), nil)

		err := q.Run(context.Background())
		assert.NoError(t, err)
		draftRepo.AssertExpectations(t)
	})

	t.Run("PublishFailureReleasesClaim", func(t *testing.T) {
		draftRepo := new(MockDraftRepo)
		pub := &fakePublisher{failIDs: map[int64]bool{2: true}}
		q := NewQueuer(draftRepo, pub, 100, zerolog.Nop())

		draftRepo.On("ClaimDue", mock.Anything, mock.Anything, 100).
			Return(claimedDrafts(1, 2, 3), nil)
		draftRepo.On("ReleaseClaim", mock.Anything, int64(2)).Return(nil)

		err := q.Run(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, []int64{1, 3}, pub.published)
		draftRepo.AssertExpectations(t)
	})
}
