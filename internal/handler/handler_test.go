package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/star-events-ticketing/internal/config"
	"github.com/iliyamo/star-events-ticketing/internal/handler"
	"github.com/iliyamo/star-events-ticketing/internal/middleware"
	"github.com/iliyamo/star-events-ticketing/internal/model"
	"github.com/iliyamo/star-events-ticketing/internal/repository"
	"github.com/iliyamo/star-events-ticketing/internal/router"
	"github.com/iliyamo/star-events-ticketing/internal/service"
	"github.com/iliyamo/star-events-ticketing/internal/testutil"
)

const testSecret = "handler-test-secret"

type app struct {
	e     *echo.Echo
	users *repository.UserRepo
	cfg   config.Config
}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func newApp(t *testing.T) *app {
	t.Helper()
	db := testutil.NewDB(t)
	log, _ := logtest.NewNullLogger()

	cfg := config.Config{
		JWTSecret:       testSecret,
		AccessTTLMin:    15,
		RefreshTTLDays:  7,
		BcryptCost:      4,
		QRCodeDir:       t.TempDir(),
		QRCodeURLPrefix: "/qrcodes",
	}

	repos := service.Repositories{
		Events:     repository.NewEventRepo(db),
		Users:      repository.NewUserRepo(db),
		Promotions: repository.NewPromotionRepo(db),
		Bookings:   repository.NewBookingRepo(db),
		Tickets:    repository.NewTicketRepo(db),
	}
	venues := repository.NewVenueRepo(db)
	tokens := repository.NewTokenRepo(db)
	qr := service.NewQRCodeWriter(cfg.QRCodeDir, cfg.QRCodeURLPrefix, 0)
	bookings := service.NewBookingService(db, repos, qr, log)
	reports := service.NewReportService(repos.Events, repos.Users, repos.Bookings)
	cache := middleware.NewResponseCache(config.CacheConfig{}, nil, log)

	e := echo.New()
	events := handler.NewEventManageHandler(repos.Events, venues, repos.Users, reports, log)
	admin := handler.NewAdminHandler(venues, repos.Promotions, repos.Users, tokens, reports, log)

	router.RegisterRoutes(e, handler.NewHealthHandler(db), cfg.QRCodeDir, cfg.QRCodeURLPrefix)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, repos.Users, tokens, log), testSecret, passthrough)
	router.RegisterPublic(e, handler.NewPublicHandler(repos.Events, venues, repos.Promotions, log), cache.Middleware())
	router.RegisterBooking(e, handler.NewBookingHandler(bookings, qr, log), testSecret, passthrough)
	router.RegisterOrganizer(e, events, testSecret)
	router.RegisterAdmin(e, admin, events, testSecret)

	return &app{e: e, users: repos.Users, cfg: cfg}
}

func (a *app) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

type authBody struct {
	User struct {
		ID   uint64     `json:"id"`
		Role model.Role `json:"role"`
	} `json:"user"`
	Access struct {
		Token string `json:"token"`
	} `json:"access"`
	Refresh struct {
		Token string `json:"token"`
	} `json:"refresh"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *app) register(t *testing.T, email, role string) authBody {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email": email, "password": "Secret123", "first_name": "Test", "last_name": "Person", "city": "Colombo", "role": role,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[authBody](t, rec)
}

func (a *app) login(t *testing.T, email, password string) *httptest.ResponseRecorder {
	return a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": email, "password": password})
}

func (a *app) admin(t *testing.T) string {
	t.Helper()
	u := &model.User{Email: "root@example.com", FirstName: "Root", LastName: "Admin", Role: model.RoleAdmin}
	require.NoError(t, a.users.Create(context.Background(), u, "Secret123", a.cfg.BcryptCost))
	rec := a.login(t, "root@example.com", "Secret123")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[authBody](t, rec).Access.Token
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAuth_RegisterLoginRefresh(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{"email": "no-at-sign", "password": "Secret123", "first_name": "A", "last_name": "B"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ann := a.register(t, "Ann@Example.com", "")
	assert.Equal(t, model.RoleCustomer, ann.User.Role)
	assert.NotEmpty(t, ann.Access.Token)

	// Self-registration cannot grant ADMIN.
	mallory := a.register(t, "mallory@example.com", "ADMIN")
	assert.Equal(t, model.RoleCustomer, mallory.User.Role)

	rec = a.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{"email": "ann@example.com", "password": "Secret123", "first_name": "A", "last_name": "B"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, a.login(t, "ann@example.com", "Wrong1234").Code)
	rec = a.login(t, "ann@example.com", "Secret123")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": ann.Refresh.Token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rotated := decode[authBody](t, rec)
	assert.NotEqual(t, ann.Refresh.Token, rotated.Refresh.Token)

	// The old refresh token was revoked by the rotation.
	rec = a.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": ann.Refresh.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodGet, "/v1/me", rotated.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ann@example.com")

	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/v1/me", "", nil).Code)
}

type bookingBody struct {
	Booking struct {
		ID          uint64          `json:"id"`
		FinalAmount decimal.Decimal `json:"final_amount"`
		Tickets     []model.Ticket  `json:"tickets"`
	} `json:"booking"`
	Quote struct {
		DiscountAmount decimal.Decimal `json:"discount_amount"`
		PointsEarned   int             `json:"loyalty_points_earned"`
	} `json:"quote"`
}

func TestBookingFlow(t *testing.T) {
	a := newApp(t)
	adminToken := a.admin(t)
	customer := a.register(t, "ann@example.com", "")
	organizer := a.register(t, "olga@example.com", "ORGANIZER")
	require.Equal(t, model.RoleOrganizer, organizer.User.Role)

	// Venue and promotion are managed by the administrator only.
	rec := a.do(t, http.MethodPost, "/v1/admin/venues", organizer.Access.Token, map[string]any{"name": "Arena", "address": "1 Main St", "city": "Colombo", "capacity": 500})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/admin/venues", adminToken, map[string]any{"name": "Arena", "address": "1 Main St", "city": "Colombo", "capacity": 500})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	venue := decode[model.Venue](t, rec)

	now := time.Now().UTC()
	rec = a.do(t, http.MethodPost, "/v1/admin/promotions", adminToken, map[string]any{
		"code": "summer15", "description": "Summer", "discount_percentage": "15", "max_discount_amount": "500",
		"start_date": now.Add(-24 * time.Hour).Format(time.RFC3339), "end_date": now.Add(30 * 24 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/v1/organizer/events", organizer.Access.Token, map[string]any{
		"name": "Jazz Night", "category": "Concert", "venue_id": venue.ID,
		"starts_at": now.Add(14 * 24 * time.Hour).Truncate(time.Second).Format(time.RFC3339),
		"ticket_price": "2500", "total_tickets": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	event := decode[model.Event](t, rec)
	assert.Equal(t, organizer.User.ID, event.OrganizerID)
	assert.Equal(t, 3, event.AvailableTickets)

	rec = a.do(t, http.MethodGet, "/v1/events?category=Concert", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decode[struct {
		Data  []handler.PublicEvent `json:"data"`
		Total int                   `json:"total"`
	}](t, rec)
	require.Equal(t, 1, listing.Total)
	assert.Equal(t, "Arena", listing.Data[0].Venue.Name)

	eventPath := "/v1/events/" + strconv.FormatUint(event.ID, 10)

	rec = a.do(t, http.MethodPost, eventPath+"/book", "", map[string]any{"number_of_tickets": 1})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, eventPath+"/book", customer.Access.Token, map[string]any{"number_of_tickets": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/events/abc/book", customer.Access.Token, map[string]any{"number_of_tickets": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid event id"}`, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/v1/events/abc/quote", customer.Access.Token, map[string]any{"number_of_tickets": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, eventPath+"/book", customer.Access.Token, map[string]any{"number_of_tickets": 4})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPost, eventPath+"/book", customer.Access.Token, map[string]any{"number_of_tickets": 2, "promotion_code": "SUMMER15"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booked := decode[bookingBody](t, rec)
	assert.Equal(t, "4500.00", booked.Booking.FinalAmount.StringFixed(2))
	assert.Equal(t, "500.00", booked.Quote.DiscountAmount.StringFixed(2))
	assert.Equal(t, 450, booked.Quote.PointsEarned)
	require.Len(t, booked.Booking.Tickets, 2)

	rec = a.do(t, http.MethodGet, "/v1/bookings", customer.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.BookingDetail](t, rec), 1)

	bookingPath := "/v1/bookings/" + strconv.FormatUint(booked.Booking.ID, 10)
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodGet, bookingPath, organizer.Access.Token, nil).Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, bookingPath, adminToken, nil).Code)

	ticketPath := "/v1/tickets/" + strconv.FormatUint(booked.Booking.Tickets[0].ID, 10)
	rec = a.do(t, http.MethodGet, ticketPath+"/qr.png", customer.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))

	rec = a.do(t, http.MethodGet, ticketPath+"/pdf", customer.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-"))

	// Events with bookings cannot be deleted.
	rec = a.do(t, http.MethodDelete, "/v1/organizer/events/"+strconv.FormatUint(event.ID, 10), organizer.Access.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "deactivate it instead")

	// Neither can venues with events.
	rec = a.do(t, http.MethodDelete, "/v1/admin/venues/"+strconv.FormatUint(venue.ID, 10), adminToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Check-in works once.
	payload := map[string]string{"payload": booked.Booking.Tickets[0].QRCode}
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodPost, "/v1/tickets/check-in", customer.Access.Token, payload).Code)
	rec = a.do(t, http.MethodPost, "/v1/tickets/check-in", organizer.Access.Token, payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[model.Ticket](t, rec).IsUsed)
	assert.Equal(t, http.StatusConflict, a.do(t, http.MethodPost, "/v1/tickets/check-in", organizer.Access.Token, payload).Code)

	// Reports are admin only.
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodGet, "/v1/admin/dashboard", customer.Access.Token, nil).Code)
	rec = a.do(t, http.MethodGet, "/v1/admin/reports/sales.csv", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "Sales_Report_")
	assert.Contains(t, rec.Body.String(), "Total Revenue,4500.00")

	rec = a.do(t, http.MethodGet, "/v1/admin/dashboard", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, dash["total_bookings"])
}

func TestAdmin_UserManagement(t *testing.T) {
	a := newApp(t)
	adminToken := a.admin(t)
	ann := a.register(t, "ann@example.com", "")
	annPath := "/v1/admin/users/" + strconv.FormatUint(ann.User.ID, 10)

	rec := a.do(t, http.MethodPut, annPath+"/role", adminToken, map[string]string{"role": "organizer"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, annPath+"/toggle-status", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":`+strconv.FormatUint(ann.User.ID, 10)+`,"is_active":false}`, rec.Body.String())

	assert.Equal(t, http.StatusForbidden, a.login(t, "ann@example.com", "Secret123").Code)
	rec = a.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": ann.Refresh.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodGet, "/v1/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.User](t, rec), 2)
}
