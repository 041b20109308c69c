package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/star-events-ticketing/internal/handler"
	"github.com/iliyamo/star-events-ticketing/internal/middleware"
	"github.com/iliyamo/star-events-ticketing/internal/model"
)

// RegisterOrganizer registers event management for organizers under
// /v1/organizer. Administrators pass the guard too and see every event.
func RegisterOrganizer(e *echo.Echo, h *handler.EventManageHandler, jwtSecret string) {
	g := e.Group(
		"/v1/organizer",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireCapability(model.CapManageOwnEvents, model.CapManageAllEvents),
	)
	g.GET("/events", h.List)
	g.POST("/events", h.Create)
	g.GET("/events/:id", h.Get)
	g.PUT("/events/:id", h.Update)
	g.PATCH("/events/:id", h.Update)
	g.DELETE("/events/:id", h.Delete)
	g.GET("/events/:id/sales", h.Sales)
}
