package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rryowa/blog_admin/internal/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Storage interface {
	SessionRepository
	UserRepository
}

// SessionRepository is the only access path to persisted sessions. There is no cache in front of it.
type SessionRepository interface {
	CreateSession(ctx context.Context, session models.Session) error
	// FindByID returns ErrSessionNotFound for missing or expired rows.
	FindByID(ctx context.Context, sessionID string) (*models.Session, error)
	// FindByOwnerCandidate returns the newest live session owned by userID.
	// The caller still has to confirm the refresh material belongs to that row.
	FindByOwnerCandidate(ctx context.Context, userID string) (*models.Session, error)
	// DeleteByID is idempotent.
	DeleteByID(ctx context.Context, sessionID string) error
	// Rotate replaces the refresh material in one statement; concurrent rotations are last-writer-wins.
	Rotate(ctx context.Context, sessionID string, rotation models.Rotation) error
}

type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}
