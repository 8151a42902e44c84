package service

import (
	"context"

	"github.com/rryowa/blog_admin/internal/metrics"
	"github.com/rryowa/blog_admin/internal/models"
)

// SessionVerifier answers "is this session still valid" for a client that just loaded.
type SessionVerifier struct {
	chain *sessionChain
}

func NewSessionVerifier(deps SessionDeps) *SessionVerifier {
	return &SessionVerifier{chain: newSessionChain(deps)}
}

// Verify returns exactly one outcome. Only unexpected store or crypto failures come back as error.
func (v *SessionVerifier) Verify(ctx context.Context, sessionID string, cookies RefreshCookies) (*Result, error) {
	out, res, err := v.chain.run(ctx, metrics.OperationVerify, sessionID, cookies)
	return v.chain.finish(metrics.OperationVerify, out, res, err, func(i *issued) models.Outcome {
		return models.VerifiedSession{
			User:        *i.user,
			AccessToken: i.accessToken,
			ExpiresAt:   i.expiresAt,
		}
	})
}
