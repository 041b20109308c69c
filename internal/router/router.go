// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/star-events-ticketing/internal/handler"
	"github.com/iliyamo/star-events-ticketing/internal/middleware"
)

// RegisterRoutes registers probe and metrics endpoints plus the static
// directory the ticket QR images are served from.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler, qrDir, qrPrefix string) {
	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.Static(qrPrefix, qrDir)
}

// RegisterAuth registers authentication and profile routes. Unauthenticated
// operations live under /v1/auth and share the rate limiter.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh) // rotates the refresh token
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	me := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	me.GET("/me", a.Me)
	me.PUT("/me", a.UpdateMe)

	e.POST("/v1/logout", a.Logout)
}

// RegisterPublic registers the guest browsing API. Responses go through the
// response cache.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1", cache)
	g.GET("/events", p.ListEvents)
	g.GET("/events/categories", p.Categories)
	g.GET("/events/cities", p.Cities)
	g.GET("/events/:id", p.GetEvent)
	g.GET("/venues", p.ListVenues)
	g.GET("/promotions/active", p.ActivePromotions)
}
