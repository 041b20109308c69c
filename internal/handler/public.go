// Package handler exposes HTTP handlers for both authenticated and public
// endpoints.
package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/star-events-ticketing/internal/model"
	"github.com/iliyamo/star-events-ticketing/internal/repository"
)

// PublicHandler serves the unauthenticated browsing API. Organizer IDs,
// audit timestamps and usage counters are left out of its responses.
type PublicHandler struct {
	Events     *repository.EventRepo
	Venues     *repository.VenueRepo
	Promotions *repository.PromotionRepo
	Log        logrus.FieldLogger
	Now        func() time.Time
}

func NewPublicHandler(events *repository.EventRepo, venues *repository.VenueRepo, promos *repository.PromotionRepo, log logrus.FieldLogger) *PublicHandler {
	if events == nil || venues == nil || promos == nil {
		panic("nil repository passed to NewPublicHandler")
	}
	return &PublicHandler{Events: events, Venues: venues, Promotions: promos, Log: log, Now: func() time.Time { return time.Now().UTC() }}
}

// PublicEvent is an event as shown to guests.
type PublicEvent struct {
	ID               uint64          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Category         string          `json:"category"`
	StartsAt         time.Time       `json:"starts_at"`
	TicketPrice      decimal.Decimal `json:"ticket_price"`
	AvailableTickets int             `json:"available_tickets"`
	SoldOut          bool            `json:"sold_out"`
	ImageURL         string          `json:"image_url,omitempty"`
	Venue            PublicVenueRef  `json:"venue"`
	Organizer        string          `json:"organizer"`
}

type PublicVenueRef struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
	City string `json:"city"`
}

type PublicVenue struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Phone       string `json:"phone,omitempty"`
	Description string `json:"description,omitempty"`
	Capacity    int    `json:"capacity"`
}

type PublicPromotion struct {
	Code               string           `json:"code"`
	Description        string           `json:"description"`
	DiscountPercentage decimal.Decimal  `json:"discount_percentage"`
	MaxDiscountAmount  *decimal.Decimal `json:"max_discount_amount,omitempty"`
	EndDate            time.Time        `json:"end_date"`
}

func toPublicEvent(l model.EventListing) PublicEvent {
	return PublicEvent{
		ID:               l.ID,
		Name:             l.Name,
		Description:      l.Description,
		Category:         l.Category,
		StartsAt:         l.StartsAt,
		TicketPrice:      l.TicketPrice,
		AvailableTickets: l.AvailableTickets,
		SoldOut:          l.SoldOut(),
		ImageURL:         l.ImageURL,
		Venue:            PublicVenueRef{ID: l.VenueID, Name: l.VenueName, City: l.VenueCity},
		Organizer:        l.OrganizerName,
	}
}

// ListEvents handles GET /v1/events?category=&city=&date=YYYY-MM-DD&page=&page_size=.
// Only active events that have not started yet are listed.
func (h *PublicHandler) ListEvents(c echo.Context) error {
	f := model.EventFilter{
		Category: strings.TrimSpace(c.QueryParam("category")),
		City:     strings.TrimSpace(c.QueryParam("city")),
		From:     h.Now(),
	}
	if d := strings.TrimSpace(c.QueryParam("date")); d != "" {
		day, err := time.Parse("2006-01-02", d)
		if err != nil {
			return badRequest(c, "date must be YYYY-MM-DD")
		}
		f.Date = &day
	}
	f.Page, _ = strconv.Atoi(c.QueryParam("page"))
	if f.Page < 1 {
		f.Page = 1
	}
	f.PageSize, _ = strconv.Atoi(c.QueryParam("page_size"))
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	items, total, err := h.Events.Search(ctx, f)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	out := make([]PublicEvent, 0, len(items))
	for _, l := range items {
		out = append(out, toPublicEvent(l))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":      out,
		"total":     total,
		"page":      f.Page,
		"page_size": f.PageSize,
	})
}

// GetEvent handles GET /v1/events/:id. Inactive events are hidden.
func (h *PublicHandler) GetEvent(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	l, err := h.Events.GetListing(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if !l.IsActive {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	}
	return c.JSON(http.StatusOK, toPublicEvent(*l))
}

// Categories handles GET /v1/events/categories.
func (h *PublicHandler) Categories(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	cats, err := h.Events.Categories(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if cats == nil {
		cats = []string{}
	}
	return c.JSON(http.StatusOK, cats)
}

// Cities handles GET /v1/events/cities.
func (h *PublicHandler) Cities(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	cities, err := h.Events.Cities(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if cities == nil {
		cities = []string{}
	}
	return c.JSON(http.StatusOK, cities)
}

// ListVenues handles GET /v1/venues.
func (h *PublicHandler) ListVenues(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	venues, err := h.Venues.List(ctx, true)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	out := make([]PublicVenue, 0, len(venues))
	for _, v := range venues {
		out = append(out, PublicVenue{ID: v.ID, Name: v.Name, Address: v.Address, City: v.City, Phone: v.Phone, Description: v.Description, Capacity: v.Capacity})
	}
	return c.JSON(http.StatusOK, out)
}

// ActivePromotions handles GET /v1/promotions/active.
func (h *PublicHandler) ActivePromotions(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	promos, err := h.Promotions.ListActive(ctx, h.Now())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	out := make([]PublicPromotion, 0, len(promos))
	for _, p := range promos {
		out = append(out, PublicPromotion{Code: p.Code, Description: p.Description, DiscountPercentage: p.DiscountPercentage, MaxDiscountAmount: p.MaxDiscountAmount, EndDate: p.EndDate})
	}
	return c.JSON(http.StatusOK, out)
}
