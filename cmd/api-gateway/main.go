package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/auth-session-api/api/swagger"
	"github.com/noah-isme/auth-session-api/internal/handler"
	"github.com/noah-isme/auth-session-api/internal/middleware"
	"github.com/noah-isme/auth-session-api/internal/repository"
	"github.com/noah-isme/auth-session-api/internal/service"
	"github.com/noah-isme/auth-session-api/migrations"
	"github.com/noah-isme/auth-session-api/pkg/cache"
	"github.com/noah-isme/auth-session-api/pkg/config"
	"github.com/noah-isme/auth-session-api/pkg/database"
	"github.com/noah-isme/auth-session-api/pkg/logger"
	"github.com/noah-isme/auth-session-api/pkg/mailer"
)

// @title Auth Session API
// @version 1.0.0
// @description Account registration, email verification and token-based sessions
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("postgres connection failed", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db.DB, migrations.Source(cfg.Database.MigrationsDir), "."); err != nil {
			logr.Fatal("migrations failed", zap.Error(err))
		}
		logr.Info("migrations applied")
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unreachable, continuing with degraded rate limiting and ledger cache", zap.Error(err))
	}
	defer redisClient.Close()

	metricsSvc := service.NewMetricsService()

	accountRepo := repository.NewAccountRepository(db)
	revocationRepo := repository.NewRevocationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.JWT.RefreshExpiration, logr, true)

	ledger := service.NewRevocationService(revocationRepo, cacheSvc, metricsSvc, logr, service.RevocationConfig{
		RetryWorkers:  cfg.Ledger.RetryWorkers,
		RetryAttempts: cfg.Ledger.RetryAttempts,
		RetryDelay:    cfg.Ledger.RetryDelay,
	})
	ledger.Start(ctx)
	defer ledger.Stop()
	ledger.StartPurger(ctx, cfg.Ledger.PurgeInterval)

	otpSvc := service.NewOTPService(service.OTPConfig{
		Length:   cfg.OTP.Length,
		TTL:      cfg.OTP.TTL,
		HashCost: cfg.OTP.HashCost,
	})
	tokenSvc := service.NewTokenService(service.TokenConfig{
		Secret:        cfg.JWT.Secret,
		Issuer:        cfg.JWT.Issuer,
		AccessExpiry:  cfg.JWT.Expiration,
		RefreshExpiry: cfg.JWT.RefreshExpiration,
	})
	sessionSvc := service.NewSessionService(
		accountRepo,
		otpSvc,
		tokenSvc,
		ledger,
		mailer.New(cfg.SMTP, logr),
		metricsSvc,
		validator.New(),
		logr,
		service.SessionConfig{ProductName: cfg.SMTP.FromName},
	)

	var limiter *service.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = service.NewRateLimiter(redisClient, service.RateLimitConfig{
			Prefix:     cfg.RateLimit.Prefix,
			RetryAfter: cfg.RateLimit.RetryAfter,
			Policies: service.RatePolicies{
				Strict:   service.RatePolicy{Limit: cfg.RateLimit.StrictLimit, Window: cfg.RateLimit.Window},
				Moderate: service.RatePolicy{Limit: cfg.RateLimit.ModerateLimit, Window: cfg.RateLimit.Window},
				Default:  service.RatePolicy{Limit: cfg.RateLimit.DefaultLimit, Window: cfg.RateLimit.Window},
			},
		}, metricsSvc, logr)
	}

	cookies := middleware.NewCookieOptions(cfg.Cookie)
	router := newRouter(routerDeps{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
		Metrics:        metricsSvc,
		Limiter:        limiter,
		Sessions:       sessionSvc,
		Cookies:        cookies,
		Auth:           handler.NewAuthHandler(sessionSvc, cookies),
		Observability: handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{
			"postgres": accountRepo,
			"redis":    cacheRepo,
		}),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
