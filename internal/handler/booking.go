package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/star-events-ticketing/internal/model"
	"github.com/iliyamo/star-events-ticketing/internal/service"
)

// BookingHandler serves booking, ticket and check-in endpoints. All
// methods run behind JWTAuth.
type BookingHandler struct {
	Bookings *service.BookingService
	QR       *service.QRCodeWriter
	Log      logrus.FieldLogger
}

func NewBookingHandler(svc *service.BookingService, qr *service.QRCodeWriter, log logrus.FieldLogger) *BookingHandler {
	if svc == nil || qr == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: svc, QR: qr, Log: log}
}

type bookingReq struct {
	NumberOfTickets  int    `json:"number_of_tickets"`
	PromotionCode    string `json:"promotion_code"`
	UseLoyaltyPoints bool   `json:"use_loyalty_points"`
}

// bindBooking reads the event id and body. When ok is false, msg is the
// client error to answer with.
func bindBooking(c echo.Context) (req service.BookingRequest, msg string, ok bool) {
	eventID, ok := parseID(c, "id")
	if !ok {
		return req, "invalid event id", false
	}
	var body bookingReq
	if err := c.Bind(&body); err != nil {
		return req, "invalid request body", false
	}
	return service.BookingRequest{
		EventID:          eventID,
		NumberOfTickets:  body.NumberOfTickets,
		PromotionCode:    strings.TrimSpace(body.PromotionCode),
		UseLoyaltyPoints: body.UseLoyaltyPoints,
	}, "", true
}

// Quote handles POST /v1/events/:id/quote. Nothing is reserved.
func (h *BookingHandler) Quote(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	req, msg, ok := bindBooking(c)
	if !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	q, err := h.Bookings.Quote(ctx, userID, req)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, q)
}

// Book handles POST /v1/events/:id/book and returns 201 with the booking,
// its tickets and the price breakdown.
func (h *BookingHandler) Book(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	req, msg, ok := bindBooking(c)
	if !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	receipt, err := h.Bookings.Book(ctx, userID, req)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, receipt)
}

// ListMine handles GET /v1/bookings.
func (h *BookingHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Bookings.ListForUser(ctx, userID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if items == nil {
		items = []model.BookingDetail{}
	}
	return c.JSON(http.StatusOK, items)
}

// Upcoming handles GET /v1/bookings/upcoming.
func (h *BookingHandler) Upcoming(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Bookings.UpcomingForUser(ctx, userID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if items == nil {
		items = []model.BookingDetail{}
	}
	return c.JSON(http.StatusOK, items)
}

// GetBooking handles GET /v1/bookings/:id.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	d, err := h.Bookings.GetBooking(ctx, userID, getRole(c), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *BookingHandler) loadTicket(c echo.Context) (*model.Ticket, *model.BookingDetail, error) {
	userID, err := getUserID(c)
	if err != nil {
		return nil, nil, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return nil, nil, badRequest(c, "invalid ticket id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, d, err := h.Bookings.GetTicket(ctx, userID, getRole(c), id)
	if err != nil {
		return nil, nil, respondError(c, h.Log, err)
	}
	return t, d, nil
}

// GetTicket handles GET /v1/tickets/:id.
func (h *BookingHandler) GetTicket(c echo.Context) error {
	t, d, err := h.loadTicket(c)
	if t == nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ticket":     t,
		"booking_id": d.ID,
		"event_name": d.EventName,
		"starts_at":  d.EventStartsAt,
		"venue_name": d.VenueName,
	})
}

// TicketQR handles GET /v1/tickets/:id/qr.png and renders the code on the fly.
func (h *BookingHandler) TicketQR(c echo.Context) error {
	t, _, err := h.loadTicket(c)
	if t == nil {
		return err
	}
	png, err := h.QR.PNG(t.QRCode)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

// TicketPDF handles GET /v1/tickets/:id/pdf.
func (h *BookingHandler) TicketPDF(c echo.Context) error {
	t, d, err := h.loadTicket(c)
	if t == nil {
		return err
	}
	png, err := h.QR.PNG(t.QRCode)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	pdf, err := service.RenderTicketPDF(service.TicketPDFData{
		TicketNumber:   t.TicketNumber,
		EventName:      d.EventName,
		StartsAt:       d.EventStartsAt,
		VenueName:      d.VenueName,
		VenueAddress:   d.VenueAddress,
		CustomerName:   d.CustomerName,
		CustomerEmail:  d.CustomerEmail,
		BookingID:      d.ID,
		QRCodePngBytes: png,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.pdf"`, t.TicketNumber))
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

type checkInReq struct {
	Payload string `json:"payload"`
}

// CheckIn handles POST /v1/tickets/check-in with the scanned QR payload.
func (h *BookingHandler) CheckIn(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req checkInReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Payload) == "" {
		return badRequest(c, "payload required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.Bookings.CheckIn(ctx, userID, getRole(c), strings.TrimSpace(req.Payload))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}
