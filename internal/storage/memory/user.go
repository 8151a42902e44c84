package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/rryowa/blog_admin/internal/models"
	"github.com/rryowa/blog_admin/internal/storage"
)

var _ storage.UserRepository = (*InMemoryUserManager)(nil)

type InMemoryUserManager struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewUserRepository(users ...models.User) *InMemoryUserManager {
	m := &InMemoryUserManager{users: make(map[string]models.User, len(users))}
	for _, u := range users {
		m.PutUser(u)
	}
	return m
}

// PutUser inserts or replaces a profile.
func (m *InMemoryUserManager) PutUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users[u.ID] = u
}

func (m *InMemoryUserManager) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return &u, nil
}

func (m *InMemoryUserManager) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if strings.ToLower(u.Email) == email {
			return &u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}
