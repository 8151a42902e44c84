package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rryowa/blog_admin/internal/controller"
	"github.com/rryowa/blog_admin/internal/metrics"
	"github.com/rryowa/blog_admin/internal/models"
	"github.com/rryowa/blog_admin/internal/service"
	"github.com/rryowa/blog_admin/internal/storage/memory"
	"github.com/rryowa/blog_admin/internal/util"
)

const testPassword = "s3cret-pass"

type recordingNotifier struct {
	addresses []string
}

func (n *recordingNotifier) Notify(_ context.Context, address string) error {
	n.addresses = append(n.addresses, address)
	return nil
}

type stubLimiter struct {
	allowed bool
}

func (l stubLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	if l.allowed {
		return true, 0, nil
	}
	return false, 90 * time.Second, nil
}

type testServer struct {
	handler  http.Handler
	store    *memory.Storage
	notifier *recordingNotifier
	cookies  *util.CookieConfig
}

func newTestServer(t *testing.T, limiter AttemptLimiter) *testServer {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	log := zap.NewNop().Sugar()
	store := memory.NewStorage(log,
		models.User{ID: "u-alice", Email: "alice@example.com", DisplayName: "Alice", Onboarded: true, PasswordHash: string(hash)},
		models.User{ID: "u-mallory", Email: "mallory@example.com", DisplayName: "Mallory", Onboarded: true, PasswordHash: string(hash)},
	)
	notifier := &recordingNotifier{}
	cookies := &util.CookieConfig{
		PayloadName:   "ba_rt_payload",
		SignatureName: "ba_rt_sig",
		TokenName:     "ba_rt_token",
		Path:          "/",
		SameSite:      http.SameSiteLaxMode,
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	tokens := service.NewTokenCodec([]byte("access-secret"), 5*time.Minute)
	deps := service.SessionDeps{
		Store:         store,
		Tokens:        tokens,
		Refresh:       service.NewRefreshCodec([]byte("refresh-secret"), 24*time.Hour),
		Notifier:      notifier,
		NotifyTimeout: time.Second,
		Metrics:       m,
		Log:           log,
	}
	ctrl := controller.NewController(log,
		service.NewSessionVerifier(deps),
		service.NewTokenRefresher(deps),
		service.NewAuthService(deps),
		store,
		cookies,
	)

	a, err := NewAPI(ctrl, tokens, &util.ServerConfig{ServerAddr: "127.0.0.1:0", GracefulTimeout: time.Second}, log,
		Options{Limiter: limiter, Metrics: m, Gatherer: registry}, nil)
	require.NoError(t, err)

	return &testServer{handler: a.Handler(), store: store, notifier: notifier, cookies: cookies}
}

func (s *testServer) do(t *testing.T, method, path string, body any, cookies []*http.Cookie, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, email string) (models.LoginResponse, []*http.Cookie) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": testPassword}, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 3)
	return resp, cookies
}

func decodeOutcome(t *testing.T, rec *httptest.ResponseRecorder) models.Outcome {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out, err := models.DecodeOutcome(rec.Body.Bytes())
	require.NoError(t, err)
	return out
}

func allCleared(cookies []*http.Cookie) bool {
	if len(cookies) != 3 {
		return false
	}
	for _, c := range cookies {
		if c.MaxAge >= 0 || c.Value != "" {
			return false
		}
	}
	return true
}

func TestPing(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/api/ping", nil, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginSetsHttpOnlyCookies(t *testing.T) {
	s := newTestServer(t, nil)
	resp, cookies := s.login(t, "alice@example.com")

	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "u-alice", resp.User.ID)
	assert.NotEmpty(t, resp.AccessToken)
	for _, c := range cookies {
		assert.True(t, c.HttpOnly, c.Name)
		assert.NotEmpty(t, c.Value, c.Name)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "alice@example.com", "password": "nope"}, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "reason")
}

func TestVerifySessionRotatesCookies(t *testing.T) {
	s := newTestServer(t, nil)
	login, cookies := s.login(t, "alice@example.com")

	rec := s.do(t, http.MethodPost, "/api/session/verify", controller.SessionRequest{SessionID: login.SessionID}, cookies, nil)
	out := decodeOutcome(t, rec)

	vs, ok := out.(models.VerifiedSession)
	require.True(t, ok, "got %T", out)
	assert.Equal(t, "u-alice", vs.User.ID)
	assert.Contains(t, rec.Body.String(), `"__typename":"VerifiedSession"`)

	rotated := rec.Result().Cookies()
	require.Len(t, rotated, 3)
	for i := range rotated {
		assert.NotEqual(t, cookies[i].Value, rotated[i].Value)
	}
}

func TestVerifySessionWithoutCookies(t *testing.T) {
	s := newTestServer(t, nil)
	login, _ := s.login(t, "alice@example.com")

	rec := s.do(t, http.MethodPost, "/api/session/verify", controller.SessionRequest{SessionID: login.SessionID}, nil, nil)
	assert.Equal(t, models.AuthCookieError{}, decodeOutcome(t, rec))
}

func TestVerifySessionEmptyID(t *testing.T) {
	s := newTestServer(t, nil)
	_, cookies := s.login(t, "alice@example.com")

	rec := s.do(t, http.MethodPost, "/api/session/verify", controller.SessionRequest{SessionID: " "}, cookies, nil)
	_, ok := decodeOutcome(t, rec).(models.SessionIDValidationError)
	assert.True(t, ok)
}

func TestVerifySessionRejectsMissingField(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodPost, "/api/session/verify", map[string]int{"other": 1}, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifySessionOwnershipAnomaly(t *testing.T) {
	s := newTestServer(t, nil)
	victim, _ := s.login(t, "alice@example.com")
	_, intruderCookies := s.login(t, "mallory@example.com")

	rec := s.do(t, http.MethodPost, "/api/session/verify", controller.SessionRequest{SessionID: victim.SessionID}, intruderCookies, nil)
	assert.Equal(t, models.NotAllowedError{}, decodeOutcome(t, rec))
	assert.True(t, allCleared(rec.Result().Cookies()))
	assert.Equal(t, []string{"mallory@example.com"}, s.notifier.addresses)
}

func TestRefreshToken(t *testing.T) {
	s := newTestServer(t, nil)
	login, cookies := s.login(t, "alice@example.com")

	rec := s.do(t, http.MethodPost, "/api/session/refresh", controller.SessionRequest{SessionID: login.SessionID}, cookies, nil)
	at, ok := decodeOutcome(t, rec).(models.AccessToken)
	require.True(t, ok)
	assert.NotEmpty(t, at.AccessToken)
	assert.Len(t, rec.Result().Cookies(), 3)
}

func TestLogoutClearsSession(t *testing.T) {
	s := newTestServer(t, nil)
	login, cookies := s.login(t, "alice@example.com")

	rec := s.do(t, http.MethodPost, "/api/auth/logout", controller.LogoutRequest{SessionID: login.SessionID}, cookies, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.True(t, allCleared(rec.Result().Cookies()))
	assert.Zero(t, s.store.Len())

	rec = s.do(t, http.MethodPost, "/api/session/verify", controller.SessionRequest{SessionID: login.SessionID}, cookies, nil)
	assert.Equal(t, models.UnknownError{}, decodeOutcome(t, rec))
}

func TestMeRequiresBearer(t *testing.T) {
	s := newTestServer(t, nil)
	login, _ := s.login(t, "alice@example.com")

	rec := s.do(t, http.MethodGet, "/api/me", nil, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/me", nil, nil, http.Header{"Authorization": {"Bearer garbage"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")

	expired, _, err := service.NewTokenCodec([]byte("access-secret"), -time.Minute).Sign("u-alice")
	require.NoError(t, err)
	rec = s.do(t, http.MethodGet, "/api/me", nil, nil, http.Header{"Authorization": {"Bearer " + expired}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token expired")

	rec = s.do(t, http.MethodGet, "/api/me", nil, nil, http.Header{"Authorization": {"Bearer " + login.AccessToken}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "alice@example.com", user.Email)
}

func TestRateLimitedSessionEndpoint(t *testing.T) {
	s := newTestServer(t, stubLimiter{allowed: false})

	rec := s.do(t, http.MethodPost, "/api/session/verify", controller.SessionRequest{SessionID: "abc"}, nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))

	rec = s.do(t, http.MethodGet, "/api/ping", nil, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, stubLimiter{allowed: true})
	login, cookies := s.login(t, "alice@example.com")
	s.do(t, http.MethodPost, "/api/session/verify", controller.SessionRequest{SessionID: login.SessionID}, cookies, nil)

	rec := s.do(t, http.MethodGet, "/metrics", nil, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `blog_admin_session_outcomes_total{operation="verify",outcome="VerifiedSession"} 1`), body)
}
