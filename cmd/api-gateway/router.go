package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/auth-session-api/internal/handler"
	"github.com/noah-isme/auth-session-api/internal/middleware"
	"github.com/noah-isme/auth-session-api/internal/models"
	"github.com/noah-isme/auth-session-api/internal/service"
	"github.com/noah-isme/auth-session-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/auth-session-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/auth-session-api/pkg/middleware/requestid"
)

type routerDeps struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool

	Logger   *zap.Logger
	Metrics  *service.MetricsService
	Limiter  *service.RateLimiter
	Sessions middleware.Authenticator
	Cookies  middleware.CookieOptions

	Auth          *handler.AuthHandler
	Observability *handler.MetricsHandler
}

func newRouter(deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(corsmiddleware.New(deps.AllowedOrigins))

	r.GET("/health", deps.Observability.Health)
	r.GET("/ready", deps.Observability.Ready)
	r.GET("/metrics", deps.Observability.Prometheus)

	if deps.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	var policies service.RatePolicies
	if deps.Limiter != nil {
		policies = deps.Limiter.Policies()
	}
	limit := func(route string, policy service.RatePolicy) gin.HandlerFunc {
		return middleware.RateLimit(deps.Limiter, route, policy)
	}
	authenticated := middleware.JWT(deps.Sessions, deps.Cookies)

	auth := r.Group(deps.APIPrefix + "/auth")
	auth.POST("/signup", limit("signup", policies.Strict), deps.Auth.SignUp)
	auth.POST("/verify-email", limit("verify-email", policies.Moderate), deps.Auth.VerifyEmail)
	auth.POST("/resend-email-verification-otp", limit("resend-email-verification-otp", policies.Strict), deps.Auth.ResendVerification)
	auth.POST("/signin", limit("signin", policies.Strict), deps.Auth.SignIn)
	auth.POST("/refresh", limit("refresh", policies.Default), deps.Auth.Refresh)
	auth.POST("/logout", limit("logout", policies.Default), deps.Auth.Logout)
	auth.POST("/request-password-reset", limit("request-password-reset", policies.Strict), deps.Auth.RequestPasswordReset)
	auth.POST("/reset-password", limit("reset-password", policies.Strict), deps.Auth.ResetPassword)
	auth.GET("/me", limit("me", policies.Default), authenticated, deps.Auth.Me)
	auth.POST("/revoke-all-tokens/:id",
		limit("revoke-all-tokens", policies.Default),
		authenticated,
		middleware.RequireRoles(models.RoleAdmin),
		deps.Auth.RevokeAll,
	)

	return r
}
