package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rryowa/blog_admin/internal/models"
	"github.com/rryowa/blog_admin/internal/storage"
)

const sessionColumns = `id, user_id, refresh_token_hash, user_agent, ip_address, expires_at, rotated_at, created_at`

type SessionRepository struct {
	db  storage.DBTX
	now func() time.Time
}

func NewSessionRepository(db storage.DBTX) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

func (r *SessionRepository) CreateSession(ctx context.Context, session models.Session) error {
	query := `INSERT INTO sessions (id, user_id, refresh_token_hash, user_agent, ip_address, expires_at, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		session.ID,
		session.UserID,
		session.RefreshTokenHash,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) FindByID(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1 AND expires_at > $2`
	session, err := scanSession(r.db.QueryRowContext(ctx, query, sessionID, r.now()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", sessionID, storage.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

func (r *SessionRepository) FindByOwnerCandidate(ctx context.Context, userID string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 AND expires_at > $2 ORDER BY COALESCE(rotated_at, created_at) DESC LIMIT 1`
	session, err := scanSession(r.db.QueryRowContext(ctx, query, userID, r.now()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session for user %s: %w", userID, storage.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to find session by owner: %w", err)
	}
	return session, nil
}

func (r *SessionRepository) DeleteByID(ctx context.Context, sessionID string) error {
	query := `DELETE FROM sessions WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Rotate(ctx context.Context, sessionID string, rotation models.Rotation) error {
	query := `UPDATE sessions SET refresh_token_hash = $2, expires_at = $3, rotated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, sessionID, rotation.RefreshTokenHash, rotation.ExpiresAt, rotation.RotatedAt)
	if err != nil {
		return fmt.Errorf("failed to rotate session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rotate rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("rotate session %s: %w", sessionID, storage.ErrSessionNotFound)
	}
	return nil
}

func scanSession(row *sql.Row) (*models.Session, error) {
	var (
		session   models.Session
		rotatedAt sql.NullTime
	)
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.RefreshTokenHash,
		&session.UserAgent,
		&session.IPAddress,
		&session.ExpiresAt,
		&rotatedAt,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if rotatedAt.Valid {
		session.RotatedAt = &rotatedAt.Time
	}
	return &session, nil
}
