package handler

import (
	"net/http"

	"github.com/SergeiKhy/timewatch-admin/internal/config"
	"github.com/SergeiKhy/timewatch-admin/internal/logger"
	"github.com/SergeiKhy/timewatch-admin/internal/metrics"
	"github.com/SergeiKhy/timewatch-admin/internal/middleware"
	"github.com/SergeiKhy/timewatch-admin/internal/service"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Services struct {
	Events   service.EventService
	Mappings service.MappingService
	Unmapped service.UnmappedService
	Auth     service.AuthService
}

func NewRouter(
	services Services,
	cfg *config.Config,
	rateLimiter *middleware.RateLimiter,
	m *metrics.Metrics,
	log *zap.Logger,
) *gin.Engine {
	log = logger.OrNop(log)
	RegisterValidators()

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(log))
	if m != nil {
		router.Use(m.Middleware())
	}

	store := cookie.NewStore([]byte(cfg.Auth.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.Auth.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   !cfg.App.IsDevelopment(),
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(middleware.SessionName, store))

	// API ключ заменяет сессию для скриптов; лимит считается по имени ключа
	router.Use(middleware.OptionalAPIKey(cfg.Auth.APIKeys))
	if rateLimiter != nil {
		router.Use(rateLimiter.MiddlewareWithKey(middleware.APIKeyName))
	}

	eventHandler := NewEventHandler(services.Events, m, log)
	mappingHandler := NewMappingHandler(services.Mappings, log)
	unmappedHandler := NewUnmappedHandler(services.Unmapped, m, log)
	authHandler := NewAuthHandler(services.Auth, log)

	api := router.Group("/api")
	{
		api.GET("/health", HealthCheck)

		auth := api.Group("/auth")
		auth.POST("/signin", authHandler.SignIn)
		auth.POST("/signout", authHandler.SignOut)
		auth.GET("/me", authHandler.Me)

		// События отвечают 401, в dev-режиме открыты
		events := api.Group("/admin/events",
			middleware.RequireAdmin(http.StatusUnauthorized, middleware.EventsDenied, cfg.App.IsDevelopment()))
		events.GET("", eventHandler.List)
		events.POST("", eventHandler.Create)
		events.PUT("", eventHandler.Update)
		events.DELETE("", eventHandler.Delete)
		events.GET("/by-date", eventHandler.ListByDate)
		events.GET("/date", eventHandler.ListByDate)
		events.POST("/date", eventHandler.AddDate)
		events.GET("/stats", eventHandler.Stats)

		admin := api.Group("/admin",
			middleware.RequireAdmin(http.StatusForbidden, middleware.ErrorDenied, false))
		admin.GET("/mappings", mappingHandler.List)
		admin.POST("/mappings", mappingHandler.Create)
		admin.PUT("/mappings", mappingHandler.Update)
		admin.DELETE("/mappings", mappingHandler.Delete)
		admin.GET("/unmapped-domains", unmappedHandler.List)
	}

	if m != nil {
		metricsRoute := router.Group("/metrics")
		if len(cfg.Auth.APIKeys) > 0 {
			metricsRoute.Use(middleware.RequireAPIKey(cfg.Auth.APIKeys))
		}
		metricsRoute.GET("", gin.WrapH(m.Handler()))
	}

	return router
}
