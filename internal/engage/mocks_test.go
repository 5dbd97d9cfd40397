package engage

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"chatspark/internal/domain"
	"chatspark/internal/queue"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) ListActiveSince(ctx context.Context, since time.Time) ([]*domain.User, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

type MockDraftRepo struct {
	mock.Mock
}

func (m *MockDraftRepo) CreateBatch(ctx context.Context, drafts []*domain.Draft) error {
	args := m.Called(ctx, drafts)
	return args.Error(0)
}

func (m *MockDraftRepo) GetByID(ctx context.Context, id int64) (*domain.Draft, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Draft), args.Error(1)
}

func (m *MockDraftRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.Draft, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Draft), args.Error(1)
}

func (m *MockDraftRepo) ReleaseClaim(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDraftRepo) MarkSent(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockConversationRepo struct {
	mock.Mock
}

func (m *MockConversationRepo) GetOrCreate(ctx context.Context, a, b int64) (*domain.Conversation, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepo) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockConversationRepo) SetLastMessage(ctx context.Context, conversationID, messageID int64) error {
	args := m.Called(ctx, conversationID, messageID)
	return args.Error(0)
}

func (m *MockConversationRepo) IncrementUnread(ctx context.Context, conversationID, userID int64) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *MockConversationRepo) ResetUnread(ctx context.Context, conversationID, userID int64) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *MockConversationRepo) UnreadCount(ctx context.Context, conversationID, userID int64) (int, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Int(0), args.Error(1)
}

type MockMessageRepo struct {
	mock.Mock
}

func (m *MockMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepo) ListForConversation(ctx context.Context, conversationID int64, limit int) ([]*domain.Message, error) {
	args := m.Called(ctx, conversationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageRepo) MarkAllRead(ctx context.Context, conversationID, readerID int64) error {
	args := m.Called(ctx, conversationID, readerID)
	return args.Error(0)
}

// fakePublisher records published draft ids and can fail selected ids.
type fakePublisher struct {
	published []int64
	failIDs   map[int64]bool
}

func (p *fakePublisher) PublishDraft(_ context.Context, draftID int64) error {
	if p.failIDs[draftID] {
		return context.DeadlineExceeded
	}
	p.published = append(p.published, draftID)
	return nil
}

// fakeDeliverer records delivered messages.
type fakeDeliverer struct {
	delivered []*domain.Message
}

func (d *fakeDeliverer) DeliverMessage(msg *domain.Message) {
	d.delivered = append(d.delivered, msg)
}

// fakeDeadLetterer records quarantined references.
type fakeDeadLetterer struct {
	refs []queue.DraftRef
	err  error
}

func (d *fakeDeadLetterer) PublishDeadLetter(_ context.Context, ref queue.DraftRef, _ string) error {
	if d.err != nil {
		return d.err
	}
	d.refs = append(d.refs, ref)
	return nil
}

// fakeDelivery is a dequeued reference with recording ack handlers.
type fakeDelivery struct {
	ref        queue.DraftRef
	deliveries int
	acked      bool
	naked      bool
	termed     bool
}

func (f *fakeDelivery) Ref() queue.DraftRef { return f.ref }
func (f *fakeDelivery) Deliveries() int     { return f.deliveries }
func (f *fakeDelivery) Ack() error          { f.acked = true; return nil }
func (f *fakeDelivery) Nak() error          { f.naked = true; return nil }
func (f *fakeDelivery) Term() error         { f.termed = true; return nil }
