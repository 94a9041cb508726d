package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/blocosbh/bloco-agenda/internal/config"
	"github.com/blocosbh/bloco-agenda/internal/handler"
	"github.com/blocosbh/bloco-agenda/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Used by load balancers and monitoring to verify the service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies
// the necessary middleware.  Unauthenticated operations live under
// /v1/auth, while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token and returns a fresh pair.
	g.POST("/refresh", a.Refresh)
	// Accepts a refresh_token body and revokes that single session.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
	// With a bearer and no body token this revokes every session.
	auth.POST("/logout", a.Logout)
}

// RegisterEvents registers the public event listings. Redis-backed
// response caching and rate limiting apply only here: listings are
// identical for every caller, while per-user agenda reads are not.
func RegisterEvents(e *echo.Echo, ev *handler.EventHandler, rdb *redis.Client) {
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()

	g := e.Group("/v1/events")
	g.Use(middleware.NewTokenBucket(rlCfg, rdb))
	g.Use(middleware.NewRedisCache(cacheCfg, rdb))
	g.GET("", ev.List)
	g.GET("/:id", ev.Get)
}

// RegisterAgenda registers the per-user override endpoints behind JWT
// authentication.
func RegisterAgenda(e *echo.Echo, ag *handler.AgendaHandler, jwtSecret string) {
	g := e.Group("/v1/me")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.GET("/agenda", ag.List)
	g.PUT("/events/:id/status", ag.SetStatus)
	g.PUT("/events/:id/override", ag.SetOverride)
}
