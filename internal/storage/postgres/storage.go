package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rryowa/blog_admin/internal/models"
	"github.com/rryowa/blog_admin/internal/storage"
)

var _ storage.Storage = (*Storage)(nil)

type Storage struct {
	db *sql.DB
	*UserRepository
	*SessionRepository
}

func NewStorage(db *sql.DB) *Storage {
	return &Storage{
		db:                db,
		UserRepository:    NewUserRepository(db),
		SessionRepository: NewSessionRepository(db),
	}
}

// CreateSession opens a session for an existing user inside one transaction,
// so a user deleted concurrently never ends up owning a fresh row.
// It shadows the embedded SessionRepository.CreateSession.
func (s *Storage) CreateSession(ctx context.Context, session models.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	userRepoTx := NewUserRepository(tx)
	sessionRepoTx := NewSessionRepository(tx)

	if _, err := userRepoTx.GetUserByID(ctx, session.UserID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("failed to get user in tx: %w", err)
	}

	if err := sessionRepoTx.CreateSession(ctx, session); err != nil {
		return fmt.Errorf("failed to create session in tx: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
