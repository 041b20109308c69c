package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/star-events-ticketing/internal/handler"
	"github.com/iliyamo/star-events-ticketing/internal/middleware"
	"github.com/iliyamo/star-events-ticketing/internal/model"
)

// RegisterBooking registers booking and ticket endpoints. Every route needs
// a valid JWT; placing a booking also needs CapBookTickets and passes the
// rate limiter. Ticket access is checked per booking owner in the service.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	book := middleware.RequireCapability(model.CapBookTickets)
	g.POST("/events/:id/quote", b.Quote, book)
	g.POST("/events/:id/book", b.Book, limit, book)

	g.GET("/bookings", b.ListMine)
	g.GET("/bookings/upcoming", b.Upcoming)
	g.GET("/bookings/:id", b.GetBooking)

	g.GET("/tickets/:id", b.GetTicket)
	g.GET("/tickets/:id/qr.png", b.TicketQR)
	g.GET("/tickets/:id/pdf", b.TicketPDF)
	g.POST("/tickets/check-in", b.CheckIn, middleware.RequireCapability(model.CapCheckInTickets))
}
