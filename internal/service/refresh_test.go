package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRefreshCodec(clock *testClock) *RefreshCodec {
	return NewRefreshCodec([]byte("refresh-secret"), 24*time.Hour).WithClock(clock.Now)
}

func TestRefreshIssueVerify(t *testing.T) {
	clock := newTestClock(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))
	rc := newTestRefreshCodec(clock)

	material, err := rc.Issue("user-1", "sess-1")
	require.NoError(t, err)
	assert.True(t, material.Cookies.Complete())
	assert.Equal(t, HashRefreshToken(material.Cookies.Token), material.Fingerprint)
	assert.Equal(t, clock.Now().Add(24*time.Hour), material.ExpiresAt)

	claims, err := rc.Verify(material.Cookies)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, material.Fingerprint, claims.Fingerprint)
	assert.False(t, claims.Expired)
}

func TestRefreshIssueRotates(t *testing.T) {
	rc := newTestRefreshCodec(newTestClock(time.Now()))

	first, err := rc.Issue("user-1", "sess-1")
	require.NoError(t, err)
	second, err := rc.Issue("user-1", "sess-1")
	require.NoError(t, err)

	assert.NotEqual(t, first.Cookies.Token, second.Cookies.Token)
	assert.NotEqual(t, first.Cookies.Payload, second.Cookies.Payload)
	assert.NotEqual(t, first.Fingerprint, second.Fingerprint)
}

func TestRefreshVerifyMissingCookie(t *testing.T) {
	rc := newTestRefreshCodec(newTestClock(time.Now()))
	material, err := rc.Issue("user-1", "sess-1")
	require.NoError(t, err)

	partial := material.Cookies
	partial.Token = " "
	_, err = rc.Verify(partial)
	require.ErrorIs(t, err, ErrRefreshCookieMissing)

	_, err = rc.Verify(RefreshCookies{})
	require.ErrorIs(t, err, ErrRefreshCookieMissing)
}

func TestRefreshVerifyRejectsMixedMaterial(t *testing.T) {
	rc := newTestRefreshCodec(newTestClock(time.Now()))
	a, err := rc.Issue("user-1", "sess-1")
	require.NoError(t, err)
	b, err := rc.Issue("user-1", "sess-1")
	require.NoError(t, err)

	swappedToken := a.Cookies
	swappedToken.Token = b.Cookies.Token
	_, err = rc.Verify(swappedToken)
	require.ErrorIs(t, err, ErrTokenMalformed)

	swappedSig := a.Cookies
	swappedSig.Signature = b.Cookies.Signature
	_, err = rc.Verify(swappedSig)
	require.ErrorIs(t, err, ErrTokenMalformed)

	garbage := RefreshCookies{Payload: "abc", Signature: "def", Token: "ghi"}
	_, err = rc.Verify(garbage)
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestRefreshVerifyRejectsAccessSecret(t *testing.T) {
	clock := newTestClock(time.Now())
	rc := newTestRefreshCodec(clock)
	forged := NewRefreshCodec([]byte("access-secret"), time.Hour).WithClock(clock.Now)

	material, err := forged.Issue("user-1", "sess-1")
	require.NoError(t, err)

	_, err = rc.Verify(material.Cookies)
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestRefreshVerifyExpired(t *testing.T) {
	clock := newTestClock(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))
	rc := newTestRefreshCodec(clock)
	material, err := rc.Issue("user-1", "sess-1")
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)
	claims, err := rc.Verify(material.Cookies)
	require.ErrorIs(t, err, ErrTokenExpired)
	require.NotNil(t, claims)
	assert.True(t, claims.Expired)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestRefreshTokenHashEqual(t *testing.T) {
	hash := HashRefreshToken("opaque")
	assert.True(t, RefreshTokenHashEqual("opaque", hash))
	assert.False(t, RefreshTokenHashEqual("other", hash))
	assert.False(t, RefreshTokenHashEqual("opaque", ""))
}
