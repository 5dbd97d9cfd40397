package service

import (
	"context"
	"time"

	"chatspark/internal/domain"
	"chatspark/internal/presence"
)

// UserService provides user-related operations.
type UserService struct {
	users  domain.UserRepository
	online presence.Store
}

func NewUserService(users domain.UserRepository, online presence.Store) *UserService {
	return &UserService{users: users, online: online}
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.users.GetByUsername(ctx, username)
}

func (s *UserService) ListActiveSince(ctx context.Context, since time.Time) ([]*domain.User, error) {
	return s.users.ListActiveSince(ctx, since)
}

func (s *UserService) IsOnline(ctx context.Context, id int64) (bool, error) {
	return s.online.Contains(ctx, id)
}

func (s *UserService) OnlineCount(ctx context.Context) (int64, error) {
	return s.online.Count(ctx)
}
