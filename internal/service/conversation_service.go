package service

import (
	"context"
	"fmt"

	"chatspark/internal/domain"
)

type ConversationService struct {
	conversations domain.ConversationRepository
	messages      domain.MessageRepository
}

func NewConversationService(
	conversations domain.ConversationRepository,
	messages domain.MessageRepository,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
	}
}

// ConversationView is a conversation enriched with per-caller fields.
type ConversationView struct {
	*domain.Conversation
	OtherUserID int64           `json:"otherUserId"`
	UnreadCount int             `json:"unreadCount"`
	LastMessage *domain.Message `json:"lastMessage,omitempty"`
}

// ListForUser returns the caller's conversations, most recently active
// first, each with its unread counter and last message.
func (s *ConversationService) ListForUser(ctx context.Context, userID int64) ([]*ConversationView, error) {
	convs, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	views := make([]*ConversationView, 0, len(convs))
	for _, conv := range convs {
		v := &ConversationView{Conversation: conv, OtherUserID: conv.OtherUser(userID)}

		v.UnreadCount, err = s.conversations.UnreadCount(ctx, conv.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("unread count for conversation %d: %w", conv.ID, err)
		}

		if conv.LastMessageID != nil {
			msg, err := s.messages.GetByID(ctx, *conv.LastMessageID)
			if err != nil {
				return nil, fmt.Errorf("last message of conversation %d: %w", conv.ID, err)
			}
			v.LastMessage = msg
		}
		views = append(views, v)
	}
	return views, nil
}

// GetConversation returns a single conversation if the caller participates.
func (s *ConversationService) GetConversation(
	ctx context.Context,
	conversationID, userID int64,
) (*ConversationView, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	ok, err := s.conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return nil, ErrForbidden
	}

	v := &ConversationView{Conversation: conv, OtherUserID: conv.OtherUser(userID)}
	v.UnreadCount, err = s.conversations.UnreadCount(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("unread count: %w", err)
	}
	if conv.LastMessageID != nil {
		msg, err := s.messages.GetByID(ctx, *conv.LastMessageID)
		if err != nil {
			return nil, fmt.Errorf("last message: %w", err)
		}
		v.LastMessage = msg
	}
	return v, nil
}
