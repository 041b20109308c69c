package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/star-events-ticketing/internal/model"
	"github.com/iliyamo/star-events-ticketing/internal/repository"
	"github.com/iliyamo/star-events-ticketing/internal/service"
)

// EventManageHandler serves event create/edit/delete for organizers and
// administrators. Callers whose role can manage all events may act on any
// event and assign its organizer; everyone else is confined to their own.
type EventManageHandler struct {
	Events  *repository.EventRepo
	Venues  *repository.VenueRepo
	Users   *repository.UserRepo
	Reports *service.ReportService
	Cache   service.CachePurger
	Log     logrus.FieldLogger
}

func NewEventManageHandler(events *repository.EventRepo, venues *repository.VenueRepo, users *repository.UserRepo, reports *service.ReportService, log logrus.FieldLogger) *EventManageHandler {
	if events == nil || venues == nil || users == nil || reports == nil {
		panic("nil dependency passed to NewEventManageHandler")
	}
	return &EventManageHandler{Events: events, Venues: venues, Users: users, Reports: reports, Log: log}
}

type eventReq struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	StartsAt     time.Time       `json:"starts_at"`
	VenueID      uint64          `json:"venue_id"`
	OrganizerID  uint64          `json:"organizer_id"`
	TicketPrice  decimal.Decimal `json:"ticket_price"`
	TotalTickets int             `json:"total_tickets"`
	ImageURL     string          `json:"image_url"`
	IsActive     *bool           `json:"is_active"`
}

func (r eventReq) validate() string {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return "name is required"
	case strings.TrimSpace(r.Category) == "":
		return "category is required"
	case r.StartsAt.IsZero():
		return "starts_at is required"
	case r.VenueID == 0:
		return "venue_id is required"
	case r.TicketPrice.IsNegative():
		return "ticket_price must not be negative"
	case r.TotalTickets < 1:
		return "total_tickets must be at least 1"
	}
	return ""
}

func (r eventReq) toModel() *model.Event {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return &model.Event{
		Name:         strings.TrimSpace(r.Name),
		Description:  strings.TrimSpace(r.Description),
		Category:     strings.TrimSpace(r.Category),
		StartsAt:     r.StartsAt.UTC(),
		VenueID:      r.VenueID,
		OrganizerID:  r.OrganizerID,
		TicketPrice:  r.TicketPrice.Round(2),
		TotalTickets: r.TotalTickets,
		ImageURL:     strings.TrimSpace(r.ImageURL),
		IsActive:     active,
	}
}

func (h *EventManageHandler) purge(ctx context.Context) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Purge(ctx); err != nil {
		h.Log.WithError(err).Warn("purge response cache")
	}
}

// checkRefs verifies the venue exists and, when set, that the organizer is
// an active account allowed to own events.
func (h *EventManageHandler) checkRefs(ctx context.Context, e *model.Event) (string, error) {
	if _, err := h.Venues.GetByID(ctx, e.VenueID); err != nil {
		if errors.Is(err, repository.ErrVenueNotFound) {
			return "venue not found", nil
		}
		return "", err
	}
	if e.OrganizerID == 0 {
		return "", nil
	}
	u, err := h.Users.GetByID(ctx, e.OrganizerID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return "organizer not found", nil
	}
	if err != nil {
		return "", err
	}
	if !u.IsActive || !u.Role.Can(model.CapManageOwnEvents) {
		return "organizer_id must reference an active organizer", nil
	}
	return "", nil
}

// List returns the caller's events, or every event for administrators.
func (h *EventManageHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	var items []model.EventListing
	if getRole(c).Can(model.CapManageAllEvents) {
		items, err = h.Events.ListAll(ctx)
	} else {
		items, err = h.Events.ListByOrganizer(ctx, uid)
	}
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if items == nil {
		items = []model.EventListing{}
	}
	return c.JSON(http.StatusOK, items)
}

// Get returns one event including inactive ones, subject to ownership.
func (h *EventManageHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
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
	if l.OrganizerID != uid && !getRole(c).Can(model.CapManageAllEvents) {
		return respondError(c, h.Log, repository.ErrForbidden)
	}
	return c.JSON(http.StatusOK, l)
}

// Create handles POST on the organizer and admin event collections.
func (h *EventManageHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}
	e := req.toModel()
	if !getRole(c).Can(model.CapManageAllEvents) || e.OrganizerID == 0 {
		e.OrganizerID = uid
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	if msg, err := h.checkRefs(ctx, e); err != nil {
		return respondError(c, h.Log, err)
	} else if msg != "" {
		return badRequest(c, msg)
	}
	if err := h.Events.Create(ctx, e); err != nil {
		return respondError(c, h.Log, err)
	}
	h.Log.WithFields(logrus.Fields{"event_id": e.ID, "by": uid}).Info("event created")
	h.purge(ctx)
	return c.JSON(http.StatusCreated, e)
}

// Update replaces the editable fields of an event. Lowering total_tickets
// below the tickets already sold is refused with 409.
func (h *EventManageHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}
	manageAll := getRole(c).Can(model.CapManageAllEvents)
	e := req.toModel()
	e.ID = id
	if !manageAll {
		e.OrganizerID = 0 // kept by the repository
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	if msg, err := h.checkRefs(ctx, e); err != nil {
		return respondError(c, h.Log, err)
	} else if msg != "" {
		return badRequest(c, msg)
	}
	if err := h.Events.Update(ctx, e, uid, manageAll); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return conflictMessage(c, "total_tickets cannot be lower than the tickets already sold")
		}
		return respondError(c, h.Log, err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusOK, e)
}

// Delete removes an event without bookings. Events with bookings must be
// deactivated instead.
func (h *EventManageHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Events.Delete(ctx, id, uid, getRole(c).Can(model.CapManageAllEvents)); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return conflictMessage(c, "cannot delete an event with existing bookings; deactivate it instead")
		}
		return respondError(c, h.Log, err)
	}
	h.Log.WithFields(logrus.Fields{"event_id": id, "by": uid}).Info("event deleted")
	h.purge(ctx)
	return c.NoContent(http.StatusNoContent)
}

// Sales returns the completed bookings and revenue of one event.
func (h *EventManageHandler) Sales(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	r, err := h.Reports.EventSales(ctx, id, uid, getRole(c).Can(model.CapManageAllEvents))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if r.Bookings == nil {
		r.Bookings = []model.BookingDetail{}
	}
	return c.JSON(http.StatusOK, r)
}
