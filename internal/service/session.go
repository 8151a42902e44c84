package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/blog_admin/internal/metrics"
	"github.com/rryowa/blog_admin/internal/models"
	"github.com/rryowa/blog_admin/internal/storage"
	"github.com/rryowa/blog_admin/internal/util"
)

const (
	reasonSessionIDRequired = "session id is required"
	reasonSessionIDTooLong  = "session id is too long"
)

// Result is a protocol outcome plus what the transport must do with the refresh cookies.
type Result struct {
	Outcome models.Outcome
	// Refresh is set when rotated cookies must be written.
	Refresh *RefreshMaterial
	// ClearCookies asks the transport to expire the refresh cookies.
	ClearCookies bool
}

// SessionDeps are the collaborators shared by SessionVerifier, TokenRefresher and AuthService.
type SessionDeps struct {
	Store         storage.Storage
	Tokens        *TokenCodec
	Refresh       *RefreshCodec
	Notifier      Notifier
	NotifyTimeout time.Duration
	Metrics       *metrics.Metrics
	Log           *zap.SugaredLogger
	// Now defaults to time.Now.
	Now func() time.Time
}

// sessionChain runs validation, credential checks, ownership comparison and rotation in order.
// The first step that produces an outcome ends the chain.
type sessionChain struct {
	SessionDeps
}

func newSessionChain(deps SessionDeps) *sessionChain {
	if deps.Log == nil {
		deps.Log = zap.NewNop().Sugar()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Notifier == nil {
		deps.Notifier = NoopNotifier{log: deps.Log}
	}
	if deps.NotifyTimeout <= 0 {
		deps.NotifyTimeout = 5 * time.Second
	}
	return &sessionChain{SessionDeps: deps}
}

// issued is what a fully successful chain produces.
type issued struct {
	user        *models.User
	accessToken string
	expiresAt   time.Time
	material    *RefreshMaterial
}

func (c *sessionChain) run(ctx context.Context, op, rawSessionID string, cookies RefreshCookies) (*issued, *Result, error) {
	sessionID := strings.TrimSpace(rawSessionID)
	if sessionID == "" {
		return nil, &Result{Outcome: models.SessionIDValidationError{Reason: reasonSessionIDRequired}}, nil
	}
	if len(sessionID) > util.MaxSessionIDLength {
		return nil, &Result{Outcome: models.SessionIDValidationError{Reason: reasonSessionIDTooLong}}, nil
	}

	if !cookies.Complete() {
		c.Log.Debugw("Refresh cookies absent", "op", op, "sessionID", sessionID)
		return nil, &Result{Outcome: models.AuthCookieError{}, ClearCookies: true}, nil
	}

	claims, err := c.Refresh.Verify(cookies)
	switch {
	case err == nil, errors.Is(err, ErrTokenExpired):
	case errors.Is(err, ErrRefreshCookieMissing):
		return nil, &Result{Outcome: models.AuthCookieError{}, ClearCookies: true}, nil
	case errors.Is(err, ErrTokenMalformed):
		c.Log.Warnw("Refresh material rejected", "op", op, "sessionID", sessionID, "error", err)
		return nil, &Result{Outcome: models.ForbiddenError{}, ClearCookies: true}, nil
	default:
		return nil, nil, fmt.Errorf("verify refresh material: %w", err)
	}

	session, err := c.Store.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, &Result{Outcome: models.UnknownError{}}, nil
		}
		return nil, nil, fmt.Errorf("find session: %w", err)
	}

	if session.UserID != claims.Subject {
		res, err := c.ownershipAnomaly(ctx, op, session, claims.Subject)
		return nil, res, err
	}
	if claims.Expired && !RefreshTokenHashEqual(strings.TrimSpace(cookies.Token), session.RefreshTokenHash) {
		c.Log.Warnw("Expired refresh material does not match session", "op", op, "sessionID", sessionID)
		return nil, &Result{Outcome: models.ForbiddenError{}, ClearCookies: true}, nil
	}
	if claims.SessionID != session.ID {
		c.Log.Infow("Refresh material was issued for another session of the owner",
			"op", op, "sessionID", session.ID, "issuedFor", claims.SessionID)
	}

	user, err := c.Store.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, &Result{Outcome: models.UnknownError{}}, nil
		}
		return nil, nil, fmt.Errorf("load user profile: %w", err)
	}

	out, err := c.issueAndRotate(ctx, session.ID, user)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, &Result{Outcome: models.UnknownError{}}, nil
		}
		return nil, nil, err
	}
	return out, nil, nil
}

// ownershipAnomaly removes the compromised session and alerts the user the cookie belongs to.
func (c *sessionChain) ownershipAnomaly(ctx context.Context, op string, session *models.Session, subject string) (*Result, error) {
	c.Log.Warnw("Session ownership mismatch",
		"op", op, "sessionID", session.ID, "owner", session.UserID, "presentedBy", subject)

	if err := c.Store.DeleteByID(ctx, session.ID); err != nil {
		return nil, fmt.Errorf("delete compromised session: %w", err)
	}
	c.alert(ctx, subject)
	return &Result{Outcome: models.NotAllowedError{}, ClearCookies: true}, nil
}

// alert calls the gateway at most once. Failures are logged and counted, never returned.
func (c *sessionChain) alert(ctx context.Context, subject string) {
	user, err := c.Store.GetUserByID(ctx, subject)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			c.Log.Warnw("Security alert skipped: cookie subject has no account", "subject", subject)
		} else {
			c.Log.Errorw("Security alert skipped: user lookup failed", "subject", subject, "error", err)
		}
		c.Metrics.ObserveAlert(metrics.AlertSkipped)
		return
	}

	notifyCtx, cancel := context.WithTimeout(ctx, c.NotifyTimeout)
	defer cancel()

	if err := c.Notifier.Notify(notifyCtx, user.Email); err != nil {
		c.Log.Errorw("Security alert delivery failed", "subject", subject, "error", err)
		c.Metrics.ObserveAlert(metrics.AlertFailed)
		return
	}
	c.Log.Infow("Security alert sent", "subject", subject)
	c.Metrics.ObserveAlert(metrics.AlertDelivered)
}

func (c *sessionChain) issueAndRotate(ctx context.Context, sessionID string, user *models.User) (*issued, error) {
	accessToken, expiresAt, err := c.Tokens.Sign(user.ID)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	material, err := c.Refresh.Issue(user.ID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh material: %w", err)
	}

	err = c.Store.Rotate(ctx, sessionID, models.Rotation{
		RefreshTokenHash: material.Fingerprint,
		ExpiresAt:        material.ExpiresAt,
		RotatedAt:        c.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("rotate session: %w", err)
	}

	return &issued{
		user:        user,
		accessToken: accessToken,
		expiresAt:   expiresAt,
		material:    material,
	}, nil
}

// finish turns a chain result into the caller's Result, recording metrics and logs.
func (c *sessionChain) finish(op string, out *issued, res *Result, err error, success func(*issued) models.Outcome) (*Result, error) {
	switch {
	case err != nil:
		c.Log.Errorw("Session chain failed", "op", op, "error", err)
		return nil, err
	case out != nil:
		res = &Result{Outcome: success(out), Refresh: out.material}
	}

	c.Metrics.ObserveOutcome(op, res.Outcome)
	c.Log.Infow("Session chain finished", "op", op, "outcome", res.Outcome.Typename())
	return res, nil
}
