package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/rryowa/blog_admin/internal/models"
	"github.com/rryowa/blog_admin/internal/storage"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// LoginResult is a freshly opened session.
type LoginResult struct {
	SessionID   string
	User        *models.User
	AccessToken string
	ExpiresAt   time.Time
	Refresh     *RefreshMaterial
}

type AuthService struct {
	chain *sessionChain
}

func NewAuthService(deps SessionDeps) *AuthService {
	return &AuthService{chain: newSessionChain(deps)}
}

// Login checks the password and opens a new session with its first refresh material.
func (s *AuthService) Login(ctx context.Context, email, password string, meta models.UserMetadata) (*LoginResult, error) {
	user, err := s.chain.Store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	sessionID := ulid.Make().String()
	material, err := s.chain.Refresh.Issue(user.ID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh material: %w", err)
	}

	err = s.chain.Store.CreateSession(ctx, models.Session{
		ID:               sessionID,
		UserID:           user.ID,
		RefreshTokenHash: material.Fingerprint,
		UserAgent:        meta.UserAgent,
		IPAddress:        meta.IPAddress,
		ExpiresAt:        material.ExpiresAt,
		CreatedAt:        s.chain.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	accessToken, expiresAt, err := s.chain.Tokens.Sign(user.ID)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.chain.Log.Infow("Session opened", "sessionID", sessionID, "userID", user.ID, "ip", meta.IPAddress)
	return &LoginResult{
		SessionID:   sessionID,
		User:        user,
		AccessToken: accessToken,
		ExpiresAt:   expiresAt,
		Refresh:     material,
	}, nil
}

// Logout closes the session the refresh cookies prove. Without an id the owner's newest session is
// the candidate. A row is deleted only when the cookie subject owns it and its fingerprint matches the
// opaque token. Cookies are cleared by the caller in every case.
func (s *AuthService) Logout(ctx context.Context, sessionID string, cookies RefreshCookies) error {
	claims, err := s.chain.Refresh.Verify(cookies)
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		s.chain.Log.Debugw("Logout without usable refresh material", "error", err)
		return nil
	}

	var session *models.Session
	if id := strings.TrimSpace(sessionID); id != "" {
		session, err = s.chain.Store.FindByID(ctx, id)
	} else {
		session, err = s.chain.Store.FindByOwnerCandidate(ctx, claims.Subject)
	}
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("resolve session: %w", err)
	}

	if session.UserID != claims.Subject ||
		!RefreshTokenHashEqual(strings.TrimSpace(cookies.Token), session.RefreshTokenHash) {
		s.chain.Log.Warnw("Logout refused: refresh material does not belong to session", "sessionID", session.ID)
		return nil
	}

	if err := s.chain.Store.DeleteByID(ctx, session.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.chain.Log.Infow("Session closed", "sessionID", session.ID, "userID", session.UserID)
	return nil
}
