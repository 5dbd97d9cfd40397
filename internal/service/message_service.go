package service

import (
	"context"
	"errors"
	"fmt"

	"chatspark/internal/domain"
	"chatspark/internal/metrics"
	"chatspark/internal/search"
)

// Sentinel errors used by handlers to map to HTTP status codes.
var (
	ErrForbidden    = errors.New("forbidden")
	ErrSelfMessage  = errors.New("cannot send a message to yourself")
	ErrEmptyContent = errors.New("message content cannot be empty")
)

// Message origins recorded by the sent-messages counter.
const (
	OriginSync  = "sync"
	OriginDraft = "draft"
)

type MessageService struct {
	users         domain.UserRepository
	conversations domain.ConversationRepository
	messages      domain.MessageRepository
	indexer       *search.Indexer
}

func NewMessageService(
	users domain.UserRepository,
	conversations domain.ConversationRepository,
	messages domain.MessageRepository,
	indexer *search.Indexer,
) *MessageService {
	return &MessageService{
		users:         users,
		conversations: conversations,
		messages:      messages,
		indexer:       indexer,
	}
}

// SendMessage validates, persists and indexes a message between two users,
// creating the conversation on first contact. The receiver's unread counter
// is bumped with a single atomic update.
func (s *MessageService) SendMessage(
	ctx context.Context,
	senderID, receiverID int64,
	content string,
	origin string,
) (*domain.Message, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	if len([]rune(content)) > 5000 {
		return nil, errors.New("message content exceeds 5000 characters")
	}
	if senderID == receiverID {
		return nil, ErrSelfMessage
	}

	receiver, err := s.users.GetByID(ctx, receiverID)
	if err != nil {
		return nil, fmt.Errorf("get receiver: %w", err)
	}
	if !receiver.IsActive {
		return nil, fmt.Errorf("receiver %d: %w", receiverID, domain.ErrForbidden)
	}

	conv, err := s.conversations.GetOrCreate(ctx, senderID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("get or create conversation: %w", err)
	}

	msg := &domain.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	if err := s.conversations.SetLastMessage(ctx, conv.ID, msg.ID); err != nil {
		return nil, fmt.Errorf("set last message: %w", err)
	}
	if err := s.conversations.IncrementUnread(ctx, conv.ID, receiverID); err != nil {
		return nil, fmt.Errorf("increment unread: %w", err)
	}

	// Best effort, a failed index never fails the send.
	_ = s.indexer.IndexMessage(ctx, msg)

	metrics.MessagesSent.WithLabelValues(origin).Inc()
	return msg, nil
}

// ListMessages returns up to limit messages of a conversation in
// chronological order. The caller must be a participant.
func (s *MessageService) ListMessages(
	ctx context.Context,
	callerID, conversationID int64,
	limit int,
) ([]*domain.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	ok, err := s.conversations.IsParticipant(ctx, conversationID, callerID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return nil, ErrForbidden
	}

	msgs, err := s.messages.ListForConversation(ctx, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	// Repository returns newest first; reverse for display order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MarkConversationRead marks every unread message addressed to the caller
// as read and resets the caller's unread counter to zero.
func (s *MessageService) MarkConversationRead(ctx context.Context, callerID, conversationID int64) error {
	ok, err := s.conversations.IsParticipant(ctx, conversationID, callerID)
	if err != nil {
		return fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return ErrForbidden
	}

	if err := s.messages.MarkAllRead(ctx, conversationID, callerID); err != nil {
		return fmt.Errorf("mark messages read: %w", err)
	}
	if err := s.conversations.ResetUnread(ctx, conversationID, callerID); err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	return nil
}

// SearchMessages resolves a free-text query against the word index and
// loads matching messages the caller is allowed to see.
func (s *MessageService) SearchMessages(ctx context.Context, callerID int64, query string) ([]*domain.Message, error) {
	ids, err := s.indexer.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	var res []*domain.Message
	for _, id := range ids {
		msg, err := s.messages.GetByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get message %d: %w", id, err)
		}
		if msg.SenderID != callerID && msg.ReceiverID != callerID {
			continue
		}
		res = append(res, msg)
	}
	return res, nil
}
