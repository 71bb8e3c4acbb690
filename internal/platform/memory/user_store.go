package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
	"github.com/taskmaster-hq/taskmaster-api/internal/store"
)

// UserStore keeps users keyed by email.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.User)}
}

var _ store.UserStore = (*UserStore)(nil)

// CreateIfAbsent implements store.UserStore.CreateIfAbsent
func (s *UserStore) CreateIfAbsent(ctx context.Context, user *domain.User) (bool, error) {
	if err := user.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[user.Email]; ok {
		user.ID = existing.ID
		return false, nil
	}
	user.ID = uuid.New().String()
	s.users[user.Email] = *user
	return true, nil
}

// GetByEmail implements store.UserStore.GetByEmail
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[email]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &u, nil
}
