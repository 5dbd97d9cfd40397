// Package presence tracks which users currently hold a live connection.
// The set is ephemeral; nothing survives a process or store restart.
package presence

import (
	"context"
	"sync"
)

// Store is the presence port. The gateway adds a user when its authoritative
// connection registers and removes it when that connection goes away.
type Store interface {
	Add(ctx context.Context, userID int64) error
	Remove(ctx context.Context, userID int64) error
	Contains(ctx context.Context, userID int64) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// Memory is the in-process implementation, suitable for a single instance
// and for tests.
type Memory struct {
	mu    sync.RWMutex
	users map[int64]struct{}
}

func NewMemory() *Memory {
	return &Memory{users: make(map[int64]struct{})}
}

var _ Store = (*Memory)(nil)

func (m *Memory) Add(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = struct{}{}
	return nil
}

func (m *Memory) Remove(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
	return nil
}

func (m *Memory) Contains(_ context.Context, userID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.users[userID]
	return ok, nil
}

func (m *Memory) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}
