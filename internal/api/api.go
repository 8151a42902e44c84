package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	middleware "github.com/oapi-codegen/echo-middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rryowa/blog_admin/internal/controller"
	"github.com/rryowa/blog_admin/internal/metrics"
	"github.com/rryowa/blog_admin/internal/service"
	"github.com/rryowa/blog_admin/internal/util"
)

const (
	shutdownTimeout = 5 * time.Second
)

// rateLimitedPaths are the routes that accept refresh material or credentials.
var rateLimitedPaths = []string{
	"/api/session/verify",
	"/api/session/refresh",
	"/api/auth/login",
}

// Options are the optional collaborators of the HTTP server.
type Options struct {
	// Limiter throttles the session endpoints; nil disables throttling.
	Limiter AttemptLimiter
	Metrics *metrics.Metrics
	// Gatherer backs GET /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
}

type API struct {
	server          *echo.Echo
	log             *zap.SugaredLogger
	gracefulTimeout time.Duration
	cleanupFuncs    []func()
}

func NewAPI(
	c *controller.Controller,
	tokens *service.TokenCodec,
	sc *util.ServerConfig,
	l *zap.SugaredLogger,
	opts Options,
	cleanupFuncs []func(),
) (*API, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.Addr = sc.ServerAddr
	e.Server.WriteTimeout = sc.WriteTimeout
	e.Server.ReadTimeout = sc.ReadTimeout
	e.Server.IdleTimeout = sc.IdleTimeout
	e.HTTPErrorHandler = ErrorHandler(l)

	a := &API{
		server:          e,
		log:             l,
		gracefulTimeout: sc.GracefulTimeout,
		cleanupFuncs:    cleanupFuncs,
	}
	if err := a.setupRoutes(c, tokens, opts); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *API) setupRoutes(c *controller.Controller, tokens *service.TokenCodec, opts Options) error {
	swagger, err := controller.GetSwagger()
	if err != nil {
		return fmt.Errorf("failed to load OpenAPI specification: %w", err)
	}
	swagger.Servers = nil

	a.server.Use(echomiddleware.Recover())
	a.server.Use(echomiddleware.RequestLoggerWithConfig(GetLoggerMiddlewareConfig(a)))

	if opts.Gatherer != nil {
		a.server.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	// The document's paths carry the /api prefix, so the validated group has none.
	g := a.server.Group("")
	g.Use(middleware.OapiRequestValidatorWithOptions(swagger, &middleware.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: BearerAuthenticator(tokens),
		},
	}))
	if opts.Limiter != nil {
		g.Use(RateLimitMiddleware(opts.Limiter, opts.Metrics, a.log, rateLimitedPaths...))
	}
	controller.RegisterHandlers(g, c)
	return nil
}

// Handler exposes the router, mainly for tests.
func (a *API) Handler() http.Handler {
	return a.server
}

func (a *API) Run(ctxBackground context.Context) {
	ctx, stop := signal.NotifyContext(ctxBackground, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.ListenGracefulShutdown(ctx)
}

func (a *API) ListenGracefulShutdown(ctx context.Context) {
	go func() {
		err := a.server.Start(a.server.Server.Addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()
	a.log.Infof("Listening on: %s", a.server.Server.Addr)

	<-ctx.Done()
	a.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.log.Errorf("shutdown: %v", err)
		}
		for _, cleanup := range a.cleanupFuncs {
			cleanup()
		}
	}()

	select {
	case <-done:
		a.log.Info("server shutdown completed")
	case <-time.After(a.gracefulTimeout):
		a.log.Warn("graceful timeout exceeded, exiting")
	}
}
