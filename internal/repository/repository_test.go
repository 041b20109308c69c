package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/star-events-ticketing/internal/model"
	"github.com/iliyamo/star-events-ticketing/internal/testutil"
)

func TestVenueRepo_DeleteGuard(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewVenueRepo(db)
	ctx := context.Background()
	org := testutil.InsertUser(t, db, testutil.UserSeed{Email: "o@example.com", Role: "ORGANIZER"})

	busy := testutil.InsertVenue(t, db, "Arena", "Kandy")
	testutil.InsertEvent(t, db, testutil.EventSeed{Name: "Show", VenueID: busy, OrganizerID: org, Total: 5, Available: 5})
	empty := testutil.InsertVenue(t, db, "Hall", "Galle")

	assert.ErrorIs(t, repo.Delete(ctx, busy), ErrConflict)
	assert.NoError(t, repo.Delete(ctx, empty))
	assert.ErrorIs(t, repo.Delete(ctx, empty), ErrVenueNotFound)

	_, err := repo.GetByID(ctx, busy)
	assert.NoError(t, err, "guarded venue is kept")
}

func TestVenueRepo_UpdateNoChange(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewVenueRepo(db)
	ctx := context.Background()

	v := &model.Venue{Name: "Arena", Address: "1 Lake Road", City: "Kandy", Capacity: 800, IsActive: true}
	require.NoError(t, repo.Create(ctx, v))

	assert.ErrorIs(t, repo.Update(ctx, v), ErrNoChange)

	v.Capacity = 900
	require.NoError(t, repo.Update(ctx, v))
	got, err := repo.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 900, got.Capacity)

	v.ID = 4242
	assert.ErrorIs(t, repo.Update(ctx, v), ErrVenueNotFound)
}

type eventFixture struct {
	events   *EventRepo
	bookings *BookingRepo
	org      uint64
	customer uint64
	eventID  uint64
}

func newEventFixture(t *testing.T, total, available int) (*eventFixture, func(n int)) {
	t.Helper()
	db := testutil.NewDB(t)
	f := &eventFixture{
		events:   NewEventRepo(db),
		bookings: NewBookingRepo(db),
		org:      testutil.InsertUser(t, db, testutil.UserSeed{Email: "o@example.com", Role: "ORGANIZER"}),
		customer: testutil.InsertUser(t, db, testutil.UserSeed{Email: "c@example.com"}),
	}
	venue := testutil.InsertVenue(t, db, "Arena", "Kandy")
	f.eventID = testutil.InsertEvent(t, db, testutil.EventSeed{Name: "Show", VenueID: venue, OrganizerID: f.org, Total: total, Available: available})

	// book sells n tickets through the same steps the booking service uses.
	book := func(n int) {
		ctx := context.Background()
		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)
		ok, err := f.events.ReserveTicketsTx(ctx, tx, f.eventID, n, time.Now().UTC())
		require.NoError(t, err)
		require.True(t, ok)
		b := &model.Booking{
			UserID: f.customer, EventID: f.eventID, NumberOfTickets: n,
			TotalAmount: decimal.NewFromInt(int64(n) * 100), DiscountAmount: decimal.Zero, FinalAmount: decimal.NewFromInt(int64(n) * 100),
			PaymentStatus: model.PaymentPending, BookingDate: time.Now().UTC(),
		}
		require.NoError(t, f.bookings.CreateTx(ctx, tx, b))
		require.NoError(t, f.bookings.CompletePaymentTx(ctx, tx, b.ID, "TXN1", "Online Payment"))
		require.NoError(t, tx.Commit())
	}
	return f, book
}

func TestEventRepo_ReserveTicketsTx(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewEventRepo(db)
	ctx := context.Background()
	org := testutil.InsertUser(t, db, testutil.UserSeed{Email: "o@example.com", Role: "ORGANIZER"})
	venue := testutil.InsertVenue(t, db, "Arena", "Kandy")
	id := testutil.InsertEvent(t, db, testutil.EventSeed{Name: "Show", VenueID: venue, OrganizerID: org, Total: 3, Available: 3})

	reserve := func(n int) bool {
		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)
		ok, err := repo.ReserveTicketsTx(ctx, tx, id, n, time.Now().UTC())
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		return ok
	}

	assert.True(t, reserve(2))
	assert.False(t, reserve(2), "only one left")
	assert.True(t, reserve(1))
	assert.False(t, reserve(1))

	e, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, e.AvailableTickets)
	assert.True(t, e.SoldOut())
}

func TestEventRepo_ReserveTicketsTx_StartedEvent(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewEventRepo(db)
	ctx := context.Background()
	org := testutil.InsertUser(t, db, testutil.UserSeed{Email: "o@example.com", Role: "ORGANIZER"})
	venue := testutil.InsertVenue(t, db, "Arena", "Kandy")
	startsAt := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	id := testutil.InsertEvent(t, db, testutil.EventSeed{Name: "Show", StartsAt: startsAt, VenueID: venue, OrganizerID: org, Total: 5, Available: 5})

	reserveAt := func(now time.Time) bool {
		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)
		ok, err := repo.ReserveTicketsTx(ctx, tx, id, 1, now)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		return ok
	}

	assert.True(t, reserveAt(startsAt.Add(-time.Hour)))
	assert.False(t, reserveAt(startsAt), "doors open")
	assert.False(t, reserveAt(startsAt.Add(48*time.Hour)))

	e, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, e.AvailableTickets)
}

func TestEventRepo_UpdateRecomputesAvailability(t *testing.T) {
	f, book := newEventFixture(t, 10, 10)
	ctx := context.Background()
	book(4)

	e, err := f.events.GetByID(ctx, f.eventID)
	require.NoError(t, err)
	require.Equal(t, 6, e.AvailableTickets)

	e.TotalTickets = 20
	require.NoError(t, f.events.Update(ctx, e, f.org, false))
	assert.Equal(t, 16, e.AvailableTickets)

	e.TotalTickets = 3
	assert.ErrorIs(t, f.events.Update(ctx, e, f.org, false), ErrConflict)

	e.TotalTickets = 4
	require.NoError(t, f.events.Update(ctx, e, f.org, false))
	assert.Equal(t, 0, e.AvailableTickets)
}

func TestEventRepo_UpdateOwnership(t *testing.T) {
	f, _ := newEventFixture(t, 10, 10)
	ctx := context.Background()

	e, err := f.events.GetByID(ctx, f.eventID)
	require.NoError(t, err)
	e.Name = "Renamed"

	assert.ErrorIs(t, f.events.Update(ctx, e, f.customer, false), ErrForbidden)

	e.OrganizerID = 0
	require.NoError(t, f.events.Update(ctx, e, f.customer, true))
	assert.Equal(t, f.org, e.OrganizerID, "organizer is kept when not reassigned")
}

func TestEventRepo_DeleteGuard(t *testing.T) {
	f, book := newEventFixture(t, 10, 10)
	ctx := context.Background()

	assert.ErrorIs(t, f.events.Delete(ctx, f.eventID, f.customer, false), ErrForbidden)

	book(1)
	assert.ErrorIs(t, f.events.Delete(ctx, f.eventID, f.org, false), ErrConflict)
	assert.ErrorIs(t, f.events.Delete(ctx, f.eventID, f.org, true), ErrConflict, "admins are guarded too")
	assert.ErrorIs(t, f.events.Delete(ctx, 999, f.org, true), ErrEventNotFound)
}

func TestEventRepo_Search(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewEventRepo(db)
	ctx := context.Background()
	org := testutil.InsertUser(t, db, testutil.UserSeed{Email: "o@example.com", Role: "ORGANIZER", FirstName: "Olga", LastName: "Org"})
	colombo := testutil.InsertVenue(t, db, "Lotus Hall", "Colombo")
	kandy := testutil.InsertVenue(t, db, "Lake Arena", "Kandy")

	now := time.Now().UTC().Truncate(time.Second)
	day := now.Add(72 * time.Hour)
	testutil.InsertEvent(t, db, testutil.EventSeed{Name: "Jazz", Category: "Concert", StartsAt: day, VenueID: colombo, OrganizerID: org, Total: 5, Available: 5})
	testutil.InsertEvent(t, db, testutil.EventSeed{Name: "Hamlet", Category: "Theatre", StartsAt: day.Add(time.Hour), VenueID: kandy, OrganizerID: org, Total: 5, Available: 0})
	testutil.InsertEvent(t, db, testutil.EventSeed{Name: "Past", Category: "Concert", StartsAt: now.Add(-time.Hour), VenueID: colombo, OrganizerID: org, Total: 5, Available: 5})
	testutil.InsertEvent(t, db, testutil.EventSeed{Name: "Hidden", Category: "Concert", StartsAt: day, VenueID: colombo, OrganizerID: org, Total: 5, Available: 5, Inactive: true})

	all, total, err := repo.Search(ctx, model.EventFilter{From: now})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, all, 2)
	assert.Equal(t, "Jazz", all[0].Name)
	assert.Equal(t, "Lotus Hall", all[0].VenueName)
	assert.Equal(t, "Olga Org", all[0].OrganizerName)
	assert.True(t, all[1].SoldOut())

	concerts, _, err := repo.Search(ctx, model.EventFilter{From: now, Category: "Concert"})
	require.NoError(t, err)
	require.Len(t, concerts, 1)

	inKandy, _, err := repo.Search(ctx, model.EventFilter{From: now, City: "Kandy"})
	require.NoError(t, err)
	require.Len(t, inKandy, 1)
	assert.Equal(t, "Hamlet", inKandy[0].Name)

	other := day.Add(48 * time.Hour)
	none, total, err := repo.Search(ctx, model.EventFilter{From: now, Date: &other})
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.Zero(t, total)

	page2, total, err := repo.Search(ctx, model.EventFilter{From: now, Page: 2, PageSize: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, page2, 1)
	assert.Equal(t, "Hamlet", page2[0].Name)

	cats, err := repo.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Concert", "Theatre"}, cats)
}

func TestPromotionRepo_ClaimUseTx(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPromotionRepo(db)
	ctx := context.Background()
	id := testutil.InsertPromotion(t, db, testutil.PromotionSeed{Code: "TWICE", Percentage: "10", MaxUses: testutil.Int(2)})

	claim := func() bool {
		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)
		ok, err := repo.ClaimUseTx(ctx, tx, id)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		return ok
	}
	assert.True(t, claim())
	assert.True(t, claim())
	assert.False(t, claim())

	p, err := repo.GetByCode(ctx, " twice ")
	require.NoError(t, err)
	assert.Equal(t, 2, p.CurrentUses)
	assert.False(t, p.Usable(time.Now()))
}

func TestPromotionRepo_UpdateKeepsCapAboveUses(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPromotionRepo(db)
	ctx := context.Background()
	id := testutil.InsertPromotion(t, db, testutil.PromotionSeed{Code: "HALFWAY", Percentage: "10", MaxUses: testutil.Int(10), CurrentUses: 5})

	p, err := repo.GetByID(ctx, id)
	require.NoError(t, err)

	p.MaxUses = testutil.Int(1)
	assert.ErrorIs(t, repo.Update(ctx, p), ErrConflict)
	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.MaxUses)
	assert.Equal(t, 10, *got.MaxUses)

	p.MaxUses = testutil.Int(5)
	require.NoError(t, repo.Update(ctx, p))

	p.MaxUses = nil
	require.NoError(t, repo.Update(ctx, p))

	p.ID = 4242
	assert.ErrorIs(t, repo.Update(ctx, p), ErrPromotionNotFound)
}

func TestPromotionRepo_CreateDuplicateAndListActive(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPromotionRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()
	limit := decimal.NewFromInt(500)

	p := &model.Promotion{
		Code: "summer15", DiscountPercentage: decimal.NewFromInt(15), MaxDiscountAmount: &limit,
		StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour), IsActive: true,
	}
	require.NoError(t, repo.Create(ctx, p))
	assert.Equal(t, "SUMMER15", p.Code)

	dup := *p
	assert.ErrorIs(t, repo.Create(ctx, &dup), ErrDuplicateCode)

	testutil.InsertPromotion(t, db, testutil.PromotionSeed{Code: "OLD", Percentage: "5", Start: now.Add(-48 * time.Hour), End: now.Add(-24 * time.Hour)})
	testutil.InsertPromotion(t, db, testutil.PromotionSeed{Code: "USEDUP", Percentage: "5", MaxUses: testutil.Int(1), CurrentUses: 1})

	active, err := repo.ListActive(ctx, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "SUMMER15", active[0].Code)
	require.NotNil(t, active[0].MaxDiscountAmount)
	assert.True(t, active[0].MaxDiscountAmount.Equal(limit))

	require.NoError(t, repo.Delete(ctx, p.ID))
	_, err = repo.GetByCode(ctx, "SUMMER15")
	assert.ErrorIs(t, err, ErrPromotionNotFound)
}

func TestUserRepo_AdjustLoyaltyTx(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepo(db)
	ctx := context.Background()
	id := testutil.InsertUser(t, db, testutil.UserSeed{Email: "c@example.com", LoyaltyPoints: 50})

	adjust := func(used, earned int) bool {
		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)
		ok, err := repo.AdjustLoyaltyTx(ctx, tx, id, used, earned)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		return ok
	}
	assert.True(t, adjust(50, 12))
	assert.False(t, adjust(13, 0), "balance is 12")

	u, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 12, u.LoyaltyPoints)
}

func TestUserRepo_CreateAndToggle(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepo(db)
	ctx := context.Background()

	u := &model.User{Email: " Ann@Example.com ", FirstName: "Ann", LastName: "Perera"}
	require.NoError(t, repo.Create(ctx, u, "Secret123!", 4))
	assert.Equal(t, "ann@example.com", u.Email)
	assert.Equal(t, model.RoleCustomer, u.Role)

	assert.ErrorIs(t, repo.Create(ctx, &model.User{Email: "ann@example.com"}, "Secret123!", 4), ErrEmailExists)

	active, err := repo.ToggleActive(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, repo.SetRole(ctx, u.ID, model.RoleOrganizer))
	got, err := repo.GetByEmail(ctx, "ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleOrganizer, got.Role)
	assert.False(t, got.IsActive)
}

func TestTicketRepo_MarkUsed(t *testing.T) {
	f, book := newEventFixture(t, 10, 10)
	book(1)
	db := f.events.db
	tickets := NewTicketRepo(db)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	batch := []model.Ticket{{BookingID: 1, TicketNumber: "TKT000001001", QRCode: "1|TKT000001001|1|2", CreatedAt: time.Now().UTC()}}
	require.NoError(t, tickets.CreateBulkTx(ctx, tx, batch))
	require.NoError(t, tx.Commit())
	require.NotZero(t, batch[0].ID)

	ok, err := tickets.MarkUsed(ctx, batch[0].ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tickets.MarkUsed(ctx, batch[0].ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := tickets.GetByNumber(ctx, "TKT000001001")
	require.NoError(t, err)
	assert.True(t, got.IsUsed)
	assert.NotNil(t, got.UsedAt)

	require.NoError(t, tickets.SetImagePath(ctx, got.ID, "/static/qrcodes/x.png"))
	assert.ErrorIs(t, tickets.SetImagePath(ctx, 999, "x"), ErrTicketNotFound)
}
