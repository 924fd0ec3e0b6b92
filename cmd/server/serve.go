package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/shop-auth-api/internal/auth"
	"github.com/iliyamo/shop-auth-api/internal/config"
	"github.com/iliyamo/shop-auth-api/internal/cors"
	"github.com/iliyamo/shop-auth-api/internal/database"
	"github.com/iliyamo/shop-auth-api/internal/handler"
	"github.com/iliyamo/shop-auth-api/internal/metrics"
	"github.com/iliyamo/shop-auth-api/internal/middleware"
	"github.com/iliyamo/shop-auth-api/internal/queue"
	"github.com/iliyamo/shop-auth-api/internal/repository"
	"github.com/iliyamo/shop-auth-api/internal/router"
	"github.com/iliyamo/shop-auth-api/internal/service"
)

// newLogger builds the process logger: JSON in production, text elsewhere.
func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.IsProduction() {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// bootstrap loads configuration and opens the database. Shared by serve
// and the admin commands.
func bootstrap(ctx context.Context) (config.Config, *logrus.Logger, *database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, nil, err
	}
	log := newLogger(cfg)

	db, err := database.Open(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return cfg, log, nil, err
	}
	if err := repository.NewIdentityRepo(db.Database).EnsureIndexes(ctx); err != nil {
		_ = db.Close(context.Background())
		return cfg, log, nil, fmt.Errorf("ensure indexes: %w", err)
	}
	return cfg, log, db, nil
}

func newTokenService(cfg config.Config) (*auth.TokenService, error) {
	return auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  cfg.Auth.JWTSecret,
		RefreshSecret: cfg.Auth.JWTRefreshSecret,
		AccessTTL:     cfg.Auth.AccessTTL.Duration(),
		RefreshTTL:    cfg.Auth.RefreshTTL.Duration(),
		Issuer:        cfg.Auth.Issuer,
	})
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, db, err := bootstrap(ctx)
	if err != nil {
		if log != nil {
			log.WithError(err).Error("startup failed")
		}
		return err
	}
	defer func() { _ = db.Close(context.Background()) }()

	cs := cfg.CookieSettings()
	log.WithFields(logrus.Fields{"secure": cs.Secure, "same_site": sameSiteName(cs.SameSite), "domain": cs.Domain}).Info("cookie policy")
	if cfg.IsProduction() && cs.SameSite != http.SameSiteNoneMode {
		log.Warn("production cookie is not SameSite=None; cross-origin frontends will not receive the session")
	}

	tokens, err := newTokenService(cfg)
	if err != nil {
		return err
	}
	hasher := auth.NewHasher(cfg.Auth.BcryptCost, cfg.Auth.HashConcurrency)
	users := repository.NewIdentityRepo(db.Database)
	products := repository.NewProductRepo(db.Database)
	resolver := auth.NewResolver(tokens, users)
	policy := cors.NewPolicy(cfg.CORSOrigins)
	m := metrics.New(nil)

	rdb := config.NewRedisClient(cfg.Redis, log)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	var events service.Publisher = service.NopPublisher{}
	if cfg.Events.Enabled {
		events = service.NewEventPublisher(cfg.Events.URL, cfg.Events.Queue, log)
	}
	defer func() { _ = events.Close() }()

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(log)
	e.Use(middleware.RequestLogger(log, m))

	router.Register(e, router.Deps{
		Guard:     middleware.NewGuard(resolver, policy, cs, m, log),
		CORS:      policy,
		Cache:     middleware.NewRedisCache(cfg.Cache, rdb, m, log),
		RateLimit: middleware.NewTokenBucket(cfg.RateLimit, rdb, log),
		Metrics:   m.Handler(),
		DB:        db,
		Auth:      handler.NewAuthHandler(cfg, users, tokens, hasher, resolver, events, m, log),
		Admin:     handler.NewAdminUsersHandler(users, events, m, log),
		Profile:   handler.NewProfileHandler(users, resolver, events, log),
		Products:  handler.NewProductHandler(products),
	})

	g, gctx := errgroup.WithContext(ctx)
	addr := ":" + cfg.Port
	g.Go(func() error {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Events.Enabled {
		consumer := queue.NewAuditConsumer(cfg.Events.URL, cfg.Events.Queue, cfg.Events.AuditLogPath, log)
		g.Go(func() error { return consumer.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("server stopped with error")
		return err
	}
	return nil
}

func sameSiteName(s http.SameSite) string {
	switch s {
	case http.SameSiteNoneMode:
		return "none"
	case http.SameSiteStrictMode:
		return "strict"
	}
	return "lax"
}

func splitRoles(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
