package service

import (
	"context"

	"github.com/rryowa/blog_admin/internal/metrics"
	"github.com/rryowa/blog_admin/internal/models"
)

// TokenRefresher issues a new bearer token for an already verified session and rotates its refresh material.
type TokenRefresher struct {
	chain *sessionChain
}

func NewTokenRefresher(deps SessionDeps) *TokenRefresher {
	return &TokenRefresher{chain: newSessionChain(deps)}
}

func (r *TokenRefresher) Refresh(ctx context.Context, sessionID string, cookies RefreshCookies) (*Result, error) {
	out, res, err := r.chain.run(ctx, metrics.OperationRefresh, sessionID, cookies)
	return r.chain.finish(metrics.OperationRefresh, out, res, err, func(i *issued) models.Outcome {
		return models.AccessToken{
			AccessToken: i.accessToken,
			ExpiresAt:   i.expiresAt,
		}
	})
}
