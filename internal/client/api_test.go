package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rryowa/blog_admin/internal/api"
	"github.com/rryowa/blog_admin/internal/controller"
	"github.com/rryowa/blog_admin/internal/metrics"
	"github.com/rryowa/blog_admin/internal/models"
	"github.com/rryowa/blog_admin/internal/service"
	"github.com/rryowa/blog_admin/internal/storage/memory"
	"github.com/rryowa/blog_admin/internal/util"
)

func newAdminServer(t *testing.T) (*httptest.Server, *memory.Storage) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("pw-123456"), bcrypt.MinCost)
	require.NoError(t, err)

	log := zap.NewNop().Sugar()
	store := memory.NewStorage(log, models.User{
		ID: "u-ann", Email: "ann@example.com", DisplayName: "Ann", Onboarded: true, PasswordHash: string(hash),
	})
	tokens := service.NewTokenCodec([]byte("access-secret"), 5*time.Minute)
	deps := service.SessionDeps{
		Store:   store,
		Tokens:  tokens,
		Refresh: service.NewRefreshCodec([]byte("refresh-secret"), time.Hour),
		Metrics: metrics.New(prometheus.NewRegistry()),
		Log:     log,
	}
	cookies := &util.CookieConfig{
		PayloadName:   "ba_rt_payload",
		SignatureName: "ba_rt_sig",
		TokenName:     "ba_rt_token",
		Path:          "/",
		SameSite:      http.SameSiteLaxMode,
	}
	ctrl := controller.NewController(log,
		service.NewSessionVerifier(deps), service.NewTokenRefresher(deps), service.NewAuthService(deps), store, cookies)

	a, err := api.NewAPI(ctrl, tokens, &util.ServerConfig{GracefulTimeout: time.Second}, log, api.Options{}, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func TestHTTPClientAgainstServer(t *testing.T) {
	srv, store := newAdminServer(t)
	ctx := context.Background()

	bearer := &BearerHolder{}
	storage := NewMemoryStorage()
	httpClient, err := NewHTTPClient(srv.URL, 5*time.Second, bearer, storage)
	require.NoError(t, err)

	_, err = httpClient.Login(ctx, "ann@example.com", "wrong")
	require.ErrorIs(t, err, ErrRejected)

	nav := &fakeNavigator{route: "/posts"}
	ctrl := NewController(ControllerDeps{
		API:       httpClient,
		Storage:   storage,
		Navigator: nav,
		View:      &fakeView{},
		Bearer:    bearer,
		Routes:    testRoutes,
	})
	defer ctrl.Close()

	require.NoError(t, ctrl.Login(ctx, "ann@example.com", "pw-123456"))
	assert.NotEmpty(t, bearer.Get())

	assert.Equal(t, StateReady, ctrl.Mount(ctx))
	require.NotNil(t, ctrl.User())
	assert.Equal(t, "u-ann", ctrl.User().ID)

	me, err := httpClient.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", me.Email)

	id, _, err := storage.Get(models.SessionIDStorageKey)
	require.NoError(t, err)
	out, err := httpClient.Refresh(ctx, id)
	require.NoError(t, err)
	_, ok := out.(models.AccessToken)
	assert.True(t, ok, "got %T", out)

	require.NoError(t, ctrl.Logout(ctx))
	assert.Zero(t, store.Len())

	out, err = httpClient.Verify(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.AuthCookieError{}, out)
}

func TestHTTPClientRestoresCookiesFromStorage(t *testing.T) {
	srv, _ := newAdminServer(t)
	ctx := context.Background()
	storage := NewMemoryStorage()

	first, err := NewHTTPClient(srv.URL, 5*time.Second, &BearerHolder{}, storage)
	require.NoError(t, err)
	res, err := first.Login(ctx, "ann@example.com", "pw-123456")
	require.NoError(t, err)

	restarted, err := NewHTTPClient(srv.URL, 5*time.Second, &BearerHolder{}, storage)
	require.NoError(t, err)
	out, err := restarted.Verify(ctx, res.SessionID)
	require.NoError(t, err)
	_, ok := out.(models.VerifiedSession)
	assert.True(t, ok, "got %T", out)

	require.NoError(t, restarted.Logout(ctx, res.SessionID))
	_, found, err := storage.Get(cookieStorageKey)
	require.NoError(t, err)
	assert.False(t, found)
}
