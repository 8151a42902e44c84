package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rryowa/blog_admin/internal/util"
)

var ErrRefreshCookieMissing = errors.New("refresh cookie missing")

// RefreshCookies is the refresh material as carried by the three cookies.
// Payload is the JWT header.payload, Signature its signature segment, Token the opaque secret
// whose hash is bound into the payload.
type RefreshCookies struct {
	Payload   string
	Signature string
	Token     string
}

// Complete reports whether all three values are present.
func (c RefreshCookies) Complete() bool {
	return strings.TrimSpace(c.Payload) != "" &&
		strings.TrimSpace(c.Signature) != "" &&
		strings.TrimSpace(c.Token) != ""
}

// RefreshMaterial is a freshly issued cookie set plus what the server persists about it.
type RefreshMaterial struct {
	Cookies     RefreshCookies
	Fingerprint string
	ExpiresAt   time.Time
}

// RefreshClaims is what a cookie set proves. Expired is set when the signature is good but exp passed.
type RefreshClaims struct {
	Subject     string
	SessionID   string
	Fingerprint string
	ExpiresAt   time.Time
	Expired     bool
}

type refreshJWTClaims struct {
	SessionID   string `json:"sid"`
	Fingerprint string `json:"fph"`
	jwt.RegisteredClaims
}

// RefreshCodec issues and verifies split refresh cookie sets.
type RefreshCodec struct {
	codec *TokenCodec
}

func NewRefreshCodec(secret []byte, ttl time.Duration) *RefreshCodec {
	return &RefreshCodec{codec: NewTokenCodec(secret, ttl)}
}

func NewRefreshCodecFromConfig(cfg *util.TokenConfig) *RefreshCodec {
	return NewRefreshCodec(cfg.RefreshSecretKey, cfg.RefreshTTL)
}

func (rc *RefreshCodec) WithClock(now func() time.Time) *RefreshCodec {
	rc.codec.WithClock(now)
	return rc
}

func (rc *RefreshCodec) Issue(subject, sessionID string) (*RefreshMaterial, error) {
	opaque, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}
	fingerprint := HashRefreshToken(opaque)

	claims := refreshJWTClaims{
		SessionID:        sessionID,
		Fingerprint:      fingerprint,
		RegisteredClaims: rc.codec.registeredClaims(subject),
	}
	signed, err := rc.codec.signClaims(claims)
	if err != nil {
		return nil, err
	}

	idx := strings.LastIndex(signed, ".")
	if idx < 0 {
		return nil, fmt.Errorf("%w: unexpected signed shape", ErrTokenMalformed)
	}

	return &RefreshMaterial{
		Cookies: RefreshCookies{
			Payload:   signed[:idx],
			Signature: signed[idx+1:],
			Token:     opaque,
		},
		Fingerprint: fingerprint,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// Verify reassembles and checks a cookie set. Results:
//   - ErrRefreshCookieMissing when any cookie is absent;
//   - ErrTokenMalformed for bad shape, bad signature, or an opaque token not matching the payload;
//   - claims with Expired=true and ErrTokenExpired for an authentic expired set;
//   - claims and nil otherwise.
func (rc *RefreshCodec) Verify(c RefreshCookies) (*RefreshClaims, error) {
	if !c.Complete() {
		return nil, ErrRefreshCookieMissing
	}

	token := strings.TrimSpace(c.Payload) + "." + strings.TrimSpace(c.Signature)
	if len(strings.Split(token, ".")) != util.TokenPartsExpected {
		return nil, fmt.Errorf("%w: invalid cookie format", ErrTokenMalformed)
	}

	var claims refreshJWTClaims
	err := rc.codec.parseClaims(token, &claims)
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		return nil, err
	}
	if claims.Subject == "" || claims.Fingerprint == "" || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: incomplete refresh claims", ErrTokenMalformed)
	}
	if !RefreshTokenHashEqual(strings.TrimSpace(c.Token), claims.Fingerprint) {
		return nil, fmt.Errorf("%w: opaque token does not match payload", ErrTokenMalformed)
	}

	return &RefreshClaims{
		Subject:     claims.Subject,
		SessionID:   claims.SessionID,
		Fingerprint: claims.Fingerprint,
		ExpiresAt:   claims.ExpiresAt.Time,
		Expired:     err != nil,
	}, err
}

// HashRefreshToken returns the hex SHA-256 of an opaque refresh token.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RefreshTokenHashEqual compares token's hash with storedHash in constant time.
func RefreshTokenHashEqual(token, storedHash string) bool {
	provided := HashRefreshToken(token)
	if len(provided) != len(storedHash) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(storedHash)) == 1
}

func newOpaqueToken() (string, error) {
	raw := make([]byte, util.RawTokenLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
