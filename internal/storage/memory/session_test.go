package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rryowa/blog_admin/internal/models"
	"github.com/rryowa/blog_admin/internal/storage"
)

func newTestRepo(now time.Time) *InMemorySessionManager {
	return NewSessionRepository(zap.NewNop().Sugar()).WithClock(func() time.Time { return now })
}

func TestFindByIDSkipsExpiredRows(t *testing.T) {
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	repo := newTestRepo(now)
	ctx := context.Background()

	require.NoError(t, repo.CreateSession(ctx, models.Session{ID: "live", UserID: "u1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.CreateSession(ctx, models.Session{ID: "old", UserID: "u1", ExpiresAt: now.Add(-time.Second)}))

	got, err := repo.FindByID(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	_, err = repo.FindByID(ctx, "old")
	require.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestDeleteByIDIsIdempotent(t *testing.T) {
	now := time.Now()
	repo := newTestRepo(now)
	ctx := context.Background()

	require.NoError(t, repo.CreateSession(ctx, models.Session{ID: "s1", UserID: "u1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.DeleteByID(ctx, "s1"))
	require.NoError(t, repo.DeleteByID(ctx, "s1"))

	_, err := repo.FindByID(ctx, "s1")
	require.ErrorIs(t, err, storage.ErrSessionNotFound)
	assert.Zero(t, repo.Len())
}

func TestRotateLastWriterWins(t *testing.T) {
	now := time.Now()
	repo := newTestRepo(now)
	ctx := context.Background()

	require.NoError(t, repo.CreateSession(ctx, models.Session{ID: "s1", UserID: "u1", RefreshTokenHash: "h0", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.Rotate(ctx, "s1", models.Rotation{RefreshTokenHash: "h1", ExpiresAt: now.Add(2 * time.Hour), RotatedAt: now}))
	require.NoError(t, repo.Rotate(ctx, "s1", models.Rotation{RefreshTokenHash: "h2", ExpiresAt: now.Add(3 * time.Hour), RotatedAt: now}))

	got, err := repo.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.RefreshTokenHash)
	require.NotNil(t, got.RotatedAt)

	err = repo.Rotate(ctx, "missing", models.Rotation{RefreshTokenHash: "h"})
	require.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestFindByOwnerCandidatePicksNewest(t *testing.T) {
	now := time.Now()
	repo := newTestRepo(now)
	ctx := context.Background()

	require.NoError(t, repo.CreateSession(ctx, models.Session{ID: "a", UserID: "u1", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.CreateSession(ctx, models.Session{ID: "b", UserID: "u1", CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.CreateSession(ctx, models.Session{ID: "c", UserID: "u2", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))

	got, err := repo.FindByOwnerCandidate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)

	require.NoError(t, repo.Rotate(ctx, "a", models.Rotation{RefreshTokenHash: "x", ExpiresAt: now.Add(time.Hour), RotatedAt: now}))
	got, err = repo.FindByOwnerCandidate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	_, err = repo.FindByOwnerCandidate(ctx, "nobody")
	require.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestUserLookupByEmailIsCaseInsensitive(t *testing.T) {
	users := NewUserRepository(models.User{ID: "u1", Email: "Ann@Example.com"})

	got, err := users.GetUserByEmail(context.Background(), " ann@example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	_, err = users.GetUserByID(context.Background(), "u2")
	require.ErrorIs(t, err, storage.ErrUserNotFound)
}
