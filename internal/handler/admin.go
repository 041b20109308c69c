package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
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

// AdminHandler serves venue, promotion and user management plus the
// dashboard and reports. Event management lives in EventManageHandler.
type AdminHandler struct {
	Venues     *repository.VenueRepo
	Promotions *repository.PromotionRepo
	Users      *repository.UserRepo
	Tokens     *repository.TokenRepo
	Reports    *service.ReportService
	Cache      service.CachePurger
	Log        logrus.FieldLogger
	Now        func() time.Time
}

func NewAdminHandler(venues *repository.VenueRepo, promos *repository.PromotionRepo, users *repository.UserRepo, tokens *repository.TokenRepo, reports *service.ReportService, log logrus.FieldLogger) *AdminHandler {
	if venues == nil || promos == nil || users == nil || tokens == nil || reports == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Venues: venues, Promotions: promos, Users: users, Tokens: tokens, Reports: reports, Log: log, Now: time.Now}
}

func (h *AdminHandler) purge(ctx context.Context) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Purge(ctx); err != nil {
		h.Log.WithError(err).Warn("purge response cache")
	}
}

// ---- Venues ----

type venueReq struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Phone       string `json:"phone"`
	Description string `json:"description"`
	Capacity    int    `json:"capacity"`
	IsActive    *bool  `json:"is_active"`
}

func (r venueReq) toModel() (*model.Venue, string) {
	v := &model.Venue{
		Name:        strings.TrimSpace(r.Name),
		Address:     strings.TrimSpace(r.Address),
		City:        strings.TrimSpace(r.City),
		Phone:       strings.TrimSpace(r.Phone),
		Description: strings.TrimSpace(r.Description),
		Capacity:    r.Capacity,
		IsActive:    r.IsActive == nil || *r.IsActive,
	}
	switch {
	case v.Name == "":
		return nil, "name is required"
	case v.Address == "":
		return nil, "address is required"
	case v.City == "":
		return nil, "city is required"
	case v.Capacity < 1:
		return nil, "capacity must be at least 1"
	}
	return v, ""
}

func (h *AdminHandler) ListVenues(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	venues, err := h.Venues.List(ctx, false)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if venues == nil {
		venues = []model.Venue{}
	}
	return c.JSON(http.StatusOK, venues)
}

func (h *AdminHandler) GetVenue(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid venue id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	v, err := h.Venues.GetByID(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *AdminHandler) CreateVenue(c echo.Context) error {
	var req venueReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	v, msg := req.toModel()
	if msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Venues.Create(ctx, v); err != nil {
		return respondError(c, h.Log, err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusCreated, v)
}

// UpdateVenue returns 200 with the venue, 404 when it vanished meanwhile and
// 409 when nothing changed.
func (h *AdminHandler) UpdateVenue(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid venue id")
	}
	var req venueReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	v, msg := req.toModel()
	if msg != "" {
		return badRequest(c, msg)
	}
	v.ID = id
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Venues.Update(ctx, v); err != nil {
		return respondError(c, h.Log, err)
	}
	h.purge(ctx)
	fresh, err := h.Venues.GetByID(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, fresh)
}

func (h *AdminHandler) DeleteVenue(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid venue id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Venues.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return conflictMessage(c, "cannot delete a venue with associated events; delete or reassign the events first")
		}
		return respondError(c, h.Log, err)
	}
	h.purge(ctx)
	return c.NoContent(http.StatusNoContent)
}

// ---- Promotions ----

type promotionReq struct {
	Code               string           `json:"code"`
	Description        string           `json:"description"`
	DiscountPercentage decimal.Decimal  `json:"discount_percentage"`
	MaxDiscountAmount  *decimal.Decimal `json:"max_discount_amount"`
	StartDate          time.Time        `json:"start_date"`
	EndDate            time.Time        `json:"end_date"`
	MaxUses            *int             `json:"max_uses"`
	IsActive           *bool            `json:"is_active"`
}

var hundred = decimal.NewFromInt(100)

func (r promotionReq) toModel() (*model.Promotion, string) {
	p := &model.Promotion{
		Code:               repository.NormalizeCode(r.Code),
		Description:        strings.TrimSpace(r.Description),
		DiscountPercentage: r.DiscountPercentage,
		MaxDiscountAmount:  r.MaxDiscountAmount,
		StartDate:          r.StartDate.UTC(),
		EndDate:            r.EndDate.UTC(),
		MaxUses:            r.MaxUses,
		IsActive:           r.IsActive == nil || *r.IsActive,
	}
	switch {
	case p.Code == "":
		return nil, "code is required"
	case !p.DiscountPercentage.IsPositive() || p.DiscountPercentage.GreaterThan(hundred):
		return nil, "discount_percentage must be greater than 0 and at most 100"
	case p.MaxDiscountAmount != nil && p.MaxDiscountAmount.IsNegative():
		return nil, "max_discount_amount must not be negative"
	case p.StartDate.IsZero() || p.EndDate.IsZero():
		return nil, "start_date and end_date are required"
	case p.EndDate.Before(p.StartDate):
		return nil, "end_date must not be before start_date"
	case p.MaxUses != nil && *p.MaxUses < 1:
		return nil, "max_uses must be at least 1"
	}
	return p, ""
}

func (h *AdminHandler) ListPromotions(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	promos, err := h.Promotions.List(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if promos == nil {
		promos = []model.Promotion{}
	}
	return c.JSON(http.StatusOK, promos)
}

func (h *AdminHandler) GetPromotion(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid promotion id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Promotions.GetByID(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *AdminHandler) CreatePromotion(c echo.Context) error {
	var req promotionReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	p, msg := req.toModel()
	if msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Promotions.Create(ctx, p); err != nil {
		return respondError(c, h.Log, err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusCreated, p)
}

func (h *AdminHandler) UpdatePromotion(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid promotion id")
	}
	var req promotionReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	p, msg := req.toModel()
	if msg != "" {
		return badRequest(c, msg)
	}
	p.ID = id
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Promotions.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return conflictMessage(c, "max_uses cannot be lower than the uses already taken")
		}
		return respondError(c, h.Log, err)
	}
	h.purge(ctx)
	fresh, err := h.Promotions.GetByID(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, fresh)
}

func (h *AdminHandler) DeletePromotion(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid promotion id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Promotions.Delete(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	h.purge(ctx)
	return c.NoContent(http.StatusNoContent)
}

// ---- Users ----

func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	users, err := h.Users.List(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if users == nil {
		users = []model.User{}
	}
	return c.JSON(http.StatusOK, users)
}

// ToggleUserStatus locks or unlocks an account. Locking also revokes the
// account's refresh tokens. Administrators cannot lock themselves out.
func (h *AdminHandler) ToggleUserStatus(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	if id == uid {
		return badRequest(c, "you cannot lock your own account")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	active, err := h.Users.ToggleActive(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if !active {
		if err := h.Tokens.RevokeAllForUser(ctx, id); err != nil {
			return respondError(c, h.Log, err)
		}
	}
	h.Log.WithFields(logrus.Fields{"user_id": id, "active": active, "by": uid}).Info("user status changed")
	return c.JSON(http.StatusOK, echo.Map{"id": id, "is_active": active})
}

type roleReq struct {
	Role string `json:"role"`
}

func (h *AdminHandler) ChangeUserRole(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		return badRequest(c, "role must be CUSTOMER, ORGANIZER or ADMIN")
	}
	if id == uid && role != model.RoleAdmin {
		return badRequest(c, "you cannot remove your own admin role")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Users.SetRole(ctx, id, role); err != nil {
		return respondError(c, h.Log, err)
	}
	h.Log.WithFields(logrus.Fields{"user_id": id, "role": role.String(), "by": uid}).Info("user role changed")
	return c.JSON(http.StatusOK, echo.Map{"id": id, "role": role})
}

// ---- Dashboard & reports ----

func (h *AdminHandler) Dashboard(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	d, err := h.Reports.Dashboard(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if d.RecentBookings == nil {
		d.RecentBookings = []model.BookingDetail{}
	}
	return c.JSON(http.StatusOK, d)
}

func (h *AdminHandler) AllReports(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	r, err := h.Reports.All(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *AdminHandler) csv(c echo.Context, kind string, write func(ctx context.Context, buf *bytes.Buffer) error) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	var buf bytes.Buffer
	if err := write(ctx, &buf); err != nil {
		return respondError(c, h.Log, err)
	}
	name := service.ReportFileName(kind, h.Now())
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// SalesCSV handles GET /v1/admin/reports/sales.csv.
func (h *AdminHandler) SalesCSV(c echo.Context) error {
	return h.csv(c, "Sales", func(ctx context.Context, buf *bytes.Buffer) error {
		r, err := h.Reports.Sales(ctx)
		if err != nil {
			return err
		}
		return service.WriteSalesCSV(buf, r)
	})
}

// EventsCSV handles GET /v1/admin/reports/events.csv.
func (h *AdminHandler) EventsCSV(c echo.Context) error {
	return h.csv(c, "Events", func(ctx context.Context, buf *bytes.Buffer) error {
		events, err := h.Reports.EventsReport(ctx)
		if err != nil {
			return err
		}
		return service.WriteEventsCSV(buf, events)
	})
}

// UsersCSV handles GET /v1/admin/reports/users.csv.
func (h *AdminHandler) UsersCSV(c echo.Context) error {
	return h.csv(c, "Users", func(ctx context.Context, buf *bytes.Buffer) error {
		users, err := h.Reports.UsersReport(ctx)
		if err != nil {
			return err
		}
		return service.WriteUsersCSV(buf, users)
	})
}
