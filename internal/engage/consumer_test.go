package engage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"chatspark/internal/domain"
	"chatspark/internal/queue"
	"chatspark/internal/service"
)

type consumerFixture struct {
	drafts     *MockDraftRepo
	users      *MockUserRepo
	convs      *MockConversationRepo
	msgs       *MockMessageRepo
	deliverer  *fakeDeliverer
	deadLetter *fakeDeadLetterer
	consumer   *Consumer
}

func newConsumerFixture(maxDeliver int) *consumerFixture {
	f := &consumerFixture{
		drafts:     new(MockDraftRepo),
		users:      new(MockUserRepo),
		convs:      new(MockConversationRepo),
		msgs:       new(MockMessageRepo),
		deliverer:  &fakeDeliverer{},
		deadLetter: &fakeDeadLetterer{},
	}
	msgSvc := service.NewMessageService(f.users, f.convs, f.msgs, nil)
	f.consumer = NewConsumer(f.drafts, msgSvc, f.deliverer, f.deadLetter, maxDeliver, zerolog.Nop())
	return f
}

func pendingDraft(id int64) *domain.Draft {
	now := time.Now()
	return &domain.Draft{
		ID: id, SenderID: 1, ReceiverID: 2,
		Content: "hello there", SendAt: now.Add(-time.Minute),
		Queued: true, QueuedAt: &now,
	}
}

func TestConsumerProcess(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newConsumerFixture(5)

		f.drafts.On("GetByID", mock.Anything, int64(7)).Return(pendingDraft(7), nil)
		f.users.On("GetByID", mock.Anything, int64(2)).
			Return(&domain.User{ID: 2, Username: "bob", IsActive: true}, nil)
		f.convs.On("GetOrCreate", mock.Anything, int64(1), int64(2)).
			Return(&domain.Conversation{ID: 10, UserLo: 1, UserHi: 2}, nil)
		f.msgs.On("Create", mock.Anything, mock.MatchedBy(func(m *domain.Message) bool {
			return m.ConversationID == 10 && m.SenderID == 1 && m.ReceiverID == 2
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Message).ID = 99
		}).Return(nil)
		f.convs.On("SetLastMessage", mock.Anything, int64(10), int64(99)).Return(nil)
		f.convs.On("IncrementUnread", mock.Anything, int64(10), int64(2)).Return(nil)
		f.drafts.On("MarkSent", mock.Anything, int64(7)).Return(nil)

		d := &fakeDelivery{ref: queue.DraftRef{DraftID: 7}, deliveries: 1}
		f.consumer.process(ctx, d)

		assert.True(t, d.acked)
		assert.False(t, d.naked)
		assert.Len(t, f.deliverer.delivered, 1)
		assert.Equal(t, int64(2), f.deliverer.delivered[0].ReceiverID)
		f.drafts.AssertExpectations(t)
	})

	t.Run("MissingDraftAckedAsNoop", func(t *testing.T) {
		f := newConsumerFixture(5)

		f.drafts.On("GetByID", mock.Anything, int64(7)).Return(nil, domain.ErrNotFound)

		d := &fakeDelivery{ref: queue.DraftRef{DraftID: 7}, deliveries: 1}
		f.consumer.process(ctx, d)

		assert.True(t, d.acked)
		assert.Empty(t, f.deliverer.delivered)
	})

	t.Run("AlreadySentAckedAsNoop", func(t *testing.T) {
		f := newConsumerFixture(5)

		draft := pendingDraft(7)
		draft.Sent = true
		f.drafts.On("GetByID", mock.Anything, int64(7)).Return(draft, nil)

		d := &fakeDelivery{ref: queue.DraftRef{DraftID: 7}, deliveries: 2}
		f.consumer.process(ctx, d)

		assert.True(t, d.acked)
		assert.Empty(t, f.deliverer.delivered)
	})

	t.Run("FailureNaksForRedelivery", func(t *testing.T) {
		f := newConsumerFixture(5)

		f.drafts.On("GetByID", mock.Anything, int64(7)).Return(nil, errors.New("db down"))

		d := &fakeDelivery{ref: queue.DraftRef{DraftID: 7}, deliveries: 2}
		f.consumer.process(ctx, d)

		assert.False(t, d.acked)
		assert.True(t, d.naked)
		assert.False(t, d.termed)
		assert.Empty(t, f.deadLetter.refs)
	})

	t.Run("ExhaustedDeliveriesDeadLettered", func(t *testing.T) {
		f := newConsumerFixture(3)

		f.drafts.On("GetByID", mock.Anything, int64(7)).Return(nil, errors.New("db down"))

		d := &fakeDelivery{ref: queue.DraftRef{DraftID: 7}, deliveries: 3}
		f.consumer.process(ctx, d)

		assert.True(t, d.termed)
		assert.False(t, d.naked)
		assert.Equal(t, []queue.DraftRef{{DraftID: 7}}, f.deadLetter.refs)
	})

	t.Run("DeadLetterFailureKeepsMessage", func(t *testing.T) {
		f := newConsumerFixture(3)
		f.deadLetter.err = errors.New("broker down")

		f.drafts.On("GetByID", mock.Anything, int64(7)).Return(nil, errors.New("db down"))

		d := &fakeDelivery{ref: queue.DraftRef{DraftID: 7}, deliveries: 3}
		f.consumer.process(ctx, d)

		assert.False(t, d.termed)
		assert.True(t, d.naked)
	})
}
