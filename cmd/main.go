package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rryowa/blog_admin/internal/api"
	"github.com/rryowa/blog_admin/internal/controller"
	"github.com/rryowa/blog_admin/internal/metrics"
	"github.com/rryowa/blog_admin/internal/migrations"
	"github.com/rryowa/blog_admin/internal/models"
	"github.com/rryowa/blog_admin/internal/service"
	"github.com/rryowa/blog_admin/internal/storage"
	"github.com/rryowa/blog_admin/internal/storage/memory"
	"github.com/rryowa/blog_admin/internal/storage/postgres"
	"github.com/rryowa/blog_admin/internal/storage/redis"
	"github.com/rryowa/blog_admin/internal/util"
)

const appname = "blog admin"

func main() {
	ctx := context.Background()
	displayAppname(appname)
	logger := util.NewZapLogger()
	defer func() { _ = logger.Sync() }()

	store, cleanupFuncs, err := newStorage(logger)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}

	opts := api.Options{
		Metrics:  metrics.New(prometheus.DefaultRegisterer),
		Gatherer: prometheus.DefaultGatherer,
	}

	if redisCfg := util.NewRedisConfig(); redisCfg != nil {
		redisClient, redisCleanup, err := util.NewRedisClient(logger, redisCfg)
		if err != nil {
			logger.Fatal(zap.Error(err))
		}
		cleanupFuncs = append(cleanupFuncs, redisCleanup)
		opts.Limiter = redis.NewAttemptLimiter(redisClient, util.NewRateLimiterConfig())
	} else {
		logger.Warn("REDIS_ADDR is not set; session endpoints are not rate limited")
	}

	tokenCfg := util.NewTokenConfig()
	notifierCfg := util.NewNotifierConfig()
	tokens := service.NewAccessTokenCodec(tokenCfg)
	deps := service.SessionDeps{
		Store:         store,
		Tokens:        tokens,
		Refresh:       service.NewRefreshCodecFromConfig(tokenCfg),
		Notifier:      service.NewNotifier(notifierCfg, logger),
		NotifyTimeout: notifierCfg.Timeout,
		Metrics:       opts.Metrics,
		Log:           logger,
	}

	ctrl := controller.NewController(
		logger,
		service.NewSessionVerifier(deps),
		service.NewTokenRefresher(deps),
		service.NewAuthService(deps),
		store,
		util.NewCookieConfig(),
	)

	apiServer, err := api.NewAPI(ctrl, tokens, util.NewServerConfig(), logger, opts, cleanupFuncs)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}
	apiServer.Run(ctx)
}

func newStorage(logger *zap.SugaredLogger) (storage.Storage, []func(), error) {
	switch backend := util.StorageBackend(); backend {
	case "memory":
		logger.Warn("Using in-memory storage; sessions are lost on restart")
		users, err := devUsers()
		if err != nil {
			return nil, nil, err
		}
		return memory.NewStorage(logger, users...), nil, nil
	case "postgres":
		db, dbCleanup, err := util.NewDBConnection(logger, util.NewDBConfig())
		if err != nil {
			return nil, nil, err
		}
		if err := migrations.RunMigrations(db, logger); err != nil {
			dbCleanup()
			return nil, nil, err
		}
		return postgres.NewStorage(db), []func(){dbCleanup}, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORAGE_BACKEND %q", backend)
	}
}

// devUsers seeds the in-memory backend from ADMIN_DEV_EMAIL and ADMIN_DEV_PASSWORD.
func devUsers() ([]models.User, error) {
	email := strings.TrimSpace(os.Getenv("ADMIN_DEV_EMAIL"))
	password := os.Getenv("ADMIN_DEV_PASSWORD")
	if email == "" || password == "" {
		return nil, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash dev password: %w", err)
	}
	return []models.User{{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.Split(email, "@")[0],
		Onboarded:    true,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}}, nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
