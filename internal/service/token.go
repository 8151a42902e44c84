package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rryowa/blog_admin/internal/util"
)

var (
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenMalformed       = errors.New("token is malformed")
	ErrInvalidSigningMethod = errors.New("invalid signing method")
)

// TokenCodec signs and verifies HS512 JWTs. It does no I/O; time comes from an injectable clock.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Claims is the verified content of a bearer token.
type Claims struct {
	Subject   string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func NewTokenCodec(secret []byte, ttl time.Duration) *TokenCodec {
	return &TokenCodec{secret: secret, ttl: ttl, now: time.Now}
}

// NewAccessTokenCodec builds the bearer-token codec from configuration.
func NewAccessTokenCodec(cfg *util.TokenConfig) *TokenCodec {
	return NewTokenCodec(cfg.JwtSecretKey, cfg.AccessTTL)
}

func (tc *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	tc.now = now
	return tc
}

// Sign issues a token for subject with iat = now and exp = now + TTL.
func (tc *TokenCodec) Sign(subject string) (token string, expiresAt time.Time, err error) {
	claims := tc.registeredClaims(subject)
	token, err = tc.signClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

// Verify checks the signature first and the expiry second.
// It returns ErrTokenMalformed or ErrTokenExpired so callers can react to each.
func (tc *TokenCodec) Verify(token string) (string, error) {
	claims, err := tc.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Parse is Verify returning the full claims. For an authentic but expired token the
// claims are returned together with ErrTokenExpired.
func (tc *TokenCodec) Parse(token string) (*Claims, error) {
	var rc jwt.RegisteredClaims
	err := tc.parseClaims(token, &rc)
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		return nil, err
	}
	if rc.Subject == "" || rc.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing subject or expiry", ErrTokenMalformed)
	}

	claims := &Claims{
		Subject:   rc.Subject,
		ID:        rc.ID,
		ExpiresAt: rc.ExpiresAt.Time,
	}
	if rc.IssuedAt != nil {
		claims.IssuedAt = rc.IssuedAt.Time
	}
	return claims, err
}

func (tc *TokenCodec) registeredClaims(subject string) jwt.RegisteredClaims {
	now := tc.now()
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tc.ttl)),
	}
}

func (tc *TokenCodec) signClaims(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signedToken, err := token.SignedString(tc.secret)
	if err != nil {
		return "", fmt.Errorf("signed string: %w", err)
	}
	return signedToken, nil
}

// parseClaims fills claims. The signature is checked before anything else; an authentic but
// expired token still has its claims filled and yields ErrTokenExpired. Every other failure is
// ErrTokenMalformed.
func (tc *TokenCodec) parseClaims(token string, claims jwt.Claims) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithoutClaimsValidation(),
	}

	parsedToken, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
				return nil, ErrInvalidSigningMethod
			}
			return tc.secret, nil
		},
		opts...,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
	if parsedToken == nil || !parsedToken.Valid {
		return ErrTokenMalformed
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fmt.Errorf("%w: missing expiry", ErrTokenMalformed)
	}
	if !tc.now().Before(exp.Add(util.JWTLeeWay)) {
		return ErrTokenExpired
	}
	return nil
}
