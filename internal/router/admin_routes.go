package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/star-events-ticketing/internal/handler"
	"github.com/iliyamo/star-events-ticketing/internal/middleware"
	"github.com/iliyamo/star-events-ticketing/internal/model"
)

// RegisterAdmin registers the administration API under /v1/admin. Each
// section is guarded by its own capability.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, ev *handler.EventManageHandler, jwtSecret string) {
	g := e.Group("/v1/admin", middleware.JWTAuth(jwtSecret))
	need := middleware.RequireCapability

	// ---- Venues ----
	venues := g.Group("/venues", need(model.CapManageVenues))
	venues.GET("", a.ListVenues)
	venues.POST("", a.CreateVenue)
	venues.GET("/:id", a.GetVenue)
	venues.PUT("/:id", a.UpdateVenue)
	venues.DELETE("/:id", a.DeleteVenue)

	// ---- Events ----
	events := g.Group("/events", need(model.CapManageAllEvents))
	events.GET("", ev.List)
	events.POST("", ev.Create)
	events.GET("/:id", ev.Get)
	events.PUT("/:id", ev.Update)
	events.DELETE("/:id", ev.Delete)
	events.GET("/:id/sales", ev.Sales)

	// ---- Promotions ----
	promos := g.Group("/promotions", need(model.CapManagePromotions))
	promos.GET("", a.ListPromotions)
	promos.POST("", a.CreatePromotion)
	promos.GET("/:id", a.GetPromotion)
	promos.PUT("/:id", a.UpdatePromotion)
	promos.DELETE("/:id", a.DeletePromotion)

	// ---- Users ----
	users := g.Group("/users", need(model.CapManageUsers))
	users.GET("", a.ListUsers)
	users.POST("/:id/toggle-status", a.ToggleUserStatus)
	users.PUT("/:id/role", a.ChangeUserRole)

	// ---- Reports ----
	reports := g.Group("", need(model.CapViewReports))
	reports.GET("/dashboard", a.Dashboard)
	reports.GET("/reports", a.AllReports)
	reports.GET("/reports/sales.csv", a.SalesCSV)
	reports.GET("/reports/events.csv", a.EventsCSV)
	reports.GET("/reports/users.csv", a.UsersCSV)
}
