package memory

import (
	"go.uber.org/zap"

	"github.com/rryowa/blog_admin/internal/models"
	"github.com/rryowa/blog_admin/internal/storage"
)

var _ storage.Storage = (*Storage)(nil)

// Storage keeps everything in process memory. Used by STORAGE_BACKEND=memory and tests.
type Storage struct {
	*InMemorySessionManager
	*InMemoryUserManager
}

func NewStorage(log *zap.SugaredLogger, users ...models.User) *Storage {
	return &Storage{
		InMemorySessionManager: NewSessionRepository(log),
		InMemoryUserManager:    NewUserRepository(users...),
	}
}
