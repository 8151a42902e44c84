package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	middleware "github.com/oapi-codegen/echo-middleware"
	"go.uber.org/zap"

	"github.com/rryowa/blog_admin/internal/metrics"
	"github.com/rryowa/blog_admin/internal/models"
	"github.com/rryowa/blog_admin/internal/service"
	"github.com/rryowa/blog_admin/internal/util"
)

const bearerPrefix = "Bearer "

// AttemptLimiter is implemented by the redis attempt limiter.
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// BearerAuthenticator checks the BearerAuth security requirement of the OpenAPI document.
// The token subject is stored under models.MwUserIDKey in the echo context.
func BearerAuthenticator(tokens *service.TokenCodec) openapi3filter.AuthenticationFunc {
	return func(ctx context.Context, input *openapi3filter.AuthenticationInput) error {
		if input.SecuritySchemeName != models.MwSchemeBearerAuth {
			return fmt.Errorf("security scheme %s is not supported", input.SecuritySchemeName)
		}

		header := input.RequestValidationInput.Request.Header.Get(echo.HeaderAuthorization)
		if !strings.HasPrefix(header, bearerPrefix) {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))

		subject, err := tokens.Verify(token)
		if err != nil {
			if errors.Is(err, service.ErrTokenExpired) {
				return echo.NewHTTPError(http.StatusUnauthorized, "token expired").SetInternal(err)
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token").SetInternal(err)
		}

		eCtx := middleware.GetEchoContext(ctx)
		if eCtx == nil {
			return errors.New("echo context is missing from the validation context")
		}
		eCtx.Set(models.MwUserIDKey, subject)
		return nil
	}
}

// RateLimitMiddleware rejects clients over their attempt budget with 429 on the given route paths.
// Other routes pass untouched. Limiter failures are logged and the request is let through.
func RateLimitMiddleware(limiter AttemptLimiter, m *metrics.Metrics, log *zap.SugaredLogger, paths ...string) echo.MiddlewareFunc {
	limited := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		limited[p] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := limited[c.Path()]; !ok {
				return next(c)
			}

			allowed, retryAfter, err := limiter.Allow(c.Request().Context(), c.RealIP())
			if err != nil {
				log.Errorw("Attempt limiter unavailable", "error", err)
				return next(c)
			}
			if !allowed {
				m.ObserveRateLimited()
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				return util.NewResponseError(http.StatusTooManyRequests, "too many attempts, retry later")
			}
			return next(c)
		}
	}
}

func GetLoggerMiddlewareConfig(a *API) echomiddleware.RequestLoggerConfig {
	return echomiddleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogError:   true,
		LogLatency: true,

		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", c.Request().Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				fields = append(fields, "error", v.Error)
			}
			if v.Status >= http.StatusInternalServerError {
				a.log.Errorw("Request", fields...)
			} else {
				a.log.Infow("Request", fields...)
			}
			return nil
		},
	}
}
