//go:generate go run github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen --config=openapi/cfg.yaml openapi/api.yaml

package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/blog_admin/internal/models"
	"github.com/rryowa/blog_admin/internal/service"
	"github.com/rryowa/blog_admin/internal/storage"
	"github.com/rryowa/blog_admin/internal/util"
)

const reasonServiceUnreachable = "service unreachable"

var _ ServerInterface = (*Controller)(nil)

type Controller struct {
	zapLogger *zap.SugaredLogger
	verifier  *service.SessionVerifier
	refresher *service.TokenRefresher
	auth      *service.AuthService
	users     storage.UserRepository
	cookies   *util.CookieConfig
}

func NewController(
	logger *zap.SugaredLogger,
	verifier *service.SessionVerifier,
	refresher *service.TokenRefresher,
	auth *service.AuthService,
	users storage.UserRepository,
	cookies *util.CookieConfig,
) *Controller {
	return &Controller{
		zapLogger: logger,
		verifier:  verifier,
		refresher: refresher,
		auth:      auth,
		users:     users,
		cookies:   cookies,
	}
}

// (GET /api/ping).
func (c *Controller) CheckServer(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, "ok")
}

// (POST /api/session/verify).
func (c *Controller) VerifySession(ctx echo.Context) error {
	var req VerifySessionJSONRequestBody
	if err := ctx.Bind(&req); err != nil {
		return InternalError(ctx, util.NewResponseError(http.StatusBadRequest, "invalid request body"))
	}

	res, err := c.verifier.Verify(ctx.Request().Context(), req.SessionID, readRefreshCookies(ctx.Request(), c.cookies))
	if err != nil {
		c.zapLogger.Errorw("Session verification failed", "error", err)
		return InternalError(ctx, util.NewResponseError(http.StatusInternalServerError, reasonServiceUnreachable))
	}
	return c.writeResult(ctx, res)
}

// (POST /api/session/refresh).
func (c *Controller) RefreshToken(ctx echo.Context) error {
	var req RefreshTokenJSONRequestBody
	if err := ctx.Bind(&req); err != nil {
		return InternalError(ctx, util.NewResponseError(http.StatusBadRequest, "invalid request body"))
	}

	res, err := c.refresher.Refresh(ctx.Request().Context(), req.SessionID, readRefreshCookies(ctx.Request(), c.cookies))
	if err != nil {
		c.zapLogger.Errorw("Token refresh failed", "error", err)
		return InternalError(ctx, util.NewResponseError(http.StatusInternalServerError, reasonServiceUnreachable))
	}
	return c.writeResult(ctx, res)
}

// (POST /api/auth/login).
func (c *Controller) Login(ctx echo.Context) error {
	var req LoginJSONRequestBody
	if err := ctx.Bind(&req); err != nil {
		return InternalError(ctx, util.NewResponseError(http.StatusBadRequest, "invalid request body"))
	}

	meta := models.UserMetadata{
		UserAgent: ctx.Request().UserAgent(),
		IPAddress: ctx.RealIP(),
	}
	res, err := c.auth.Login(ctx.Request().Context(), string(req.Email), req.Password, meta)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return InternalError(ctx, util.NewResponseError(http.StatusUnauthorized, "%s", err.Error()))
		}
		c.zapLogger.Errorw("Login failed", "error", err)
		return InternalError(ctx, util.NewResponseError(http.StatusInternalServerError, reasonServiceUnreachable))
	}

	setRefreshCookies(ctx, c.cookies, res.Refresh)
	return ctx.JSON(http.StatusOK, models.LoginResponse{
		SessionID:   res.SessionID,
		User:        *res.User,
		AccessToken: res.AccessToken,
		ExpiresAt:   res.ExpiresAt,
	})
}

// (POST /api/auth/logout).
func (c *Controller) Logout(ctx echo.Context) error {
	var req LogoutJSONRequestBody
	if ctx.Request().ContentLength > 0 {
		if err := ctx.Bind(&req); err != nil {
			return InternalError(ctx, util.NewResponseError(http.StatusBadRequest, "invalid request body"))
		}
	}

	err := c.auth.Logout(ctx.Request().Context(), req.SessionID, readRefreshCookies(ctx.Request(), c.cookies))
	clearRefreshCookies(ctx, c.cookies)
	if err != nil {
		c.zapLogger.Errorw("Logout failed", "error", err)
		return InternalError(ctx, util.NewResponseError(http.StatusInternalServerError, reasonServiceUnreachable))
	}
	return ctx.NoContent(http.StatusNoContent)
}

// (GET /api/me).
func (c *Controller) Me(ctx echo.Context) error {
	userID, ok := ctx.Get(models.MwUserIDKey).(string)
	if !ok || userID == "" {
		return InternalError(ctx, util.NewResponseError(http.StatusUnauthorized, "missing bearer token"))
	}

	user, err := c.users.GetUserByID(ctx.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return InternalError(ctx, util.NewResponseError(http.StatusNotFound, "user not found"))
		}
		return InternalError(ctx, util.NewResponseError(http.StatusInternalServerError, reasonServiceUnreachable))
	}
	return ctx.JSON(http.StatusOK, user)
}

func (c *Controller) writeResult(ctx echo.Context, res *service.Result) error {
	applyCookies(ctx, c.cookies, res)

	body, err := models.EncodeOutcome(res.Outcome)
	if err != nil {
		c.zapLogger.Errorw("Failed to encode outcome", "error", err)
		return InternalError(ctx, util.NewResponseError(http.StatusInternalServerError, reasonServiceUnreachable))
	}
	return ctx.JSONBlob(http.StatusOK, body)
}

// InternalError writes err as {"reason"} and hands it back so the request logger sees it.
func InternalError(ctx echo.Context, err error) error {
	var customErr util.MyResponseError
	if errors.As(err, &customErr) {
		_ = ctx.JSON(customErr.Status, ErrorResponse{Reason: customErr.Msg})
		return err
	}

	_ = ctx.JSON(http.StatusInternalServerError, ErrorResponse{Reason: err.Error()})
	return err
}
