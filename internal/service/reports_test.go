package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/star-events-ticketing/internal/model"
	"github.com/iliyamo/star-events-ticketing/internal/repository"
)

func TestReportFileName(t *testing.T) {
	at := time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "Sales_Report_20250101_093000.csv", ReportFileName("Sales", at))
}

func TestWriteSalesCSV(t *testing.T) {
	day := time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)
	bookings := []model.BookingDetail{
		{
			Booking: model.Booking{
				ID: 1, NumberOfTickets: 2, BookingDate: day,
				TotalAmount: dec("5000"), DiscountAmount: dec("508"), FinalAmount: dec("4492"),
			},
			CustomerName: "Ann Perera", CustomerEmail: "ann@example.com", EventName: "Jazz, Live",
		},
		{
			Booking: model.Booking{
				ID: 2, NumberOfTickets: 1, BookingDate: day,
				TotalAmount: dec("2500"), DiscountAmount: dec("0"), FinalAmount: dec("2500"),
			},
			CustomerName: "Ben Silva", CustomerEmail: "ben@example.com", EventName: "Jazz, Live",
		},
	}
	r := summarize(bookings)
	assert.Equal(t, 3, r.TicketsSold)
	assert.True(t, r.TotalRevenue.Equal(dec("6992")))

	var buf bytes.Buffer
	require.NoError(t, WriteSalesCSV(&buf, &r))
	want := strings.Join([]string{
		"Booking ID,Customer Name,Email,Event Name,Booking Date,Tickets,Total Amount,Discount Amount,Final Amount",
		`1,Ann Perera,ann@example.com,"Jazz, Live",2026-02-14,2,5000.00,508.00,4492.00`,
		`2,Ben Silva,ben@example.com,"Jazz, Live",2026-02-14,1,2500.00,0.00,2500.00`,
		"",
		"Total Revenue,6992.00",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestWriteEventsCSV(t *testing.T) {
	events := []model.EventListing{{
		Event: model.Event{
			Name: "Jazz Night", Category: "Concert",
			StartsAt:    time.Date(2026, 5, 4, 19, 0, 0, 0, time.UTC),
			TicketPrice: dec("2500"), TotalTickets: 100, AvailableTickets: 98,
		},
		VenueName: "Nelum Pokuna", OrganizerName: "Olga Organizer",
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteEventsCSV(&buf, events))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Jazz Night,2026-05-04,19:00:00,Nelum Pokuna,Concert,2500.00,100,98,Inactive,Olga Organizer", lines[1])
}

func TestWriteUsersCSV(t *testing.T) {
	users := []model.User{
		{FirstName: "Ann", LastName: "Perera", Email: "ann@example.com", Role: model.RoleCustomer, City: "Colombo", LoyaltyPoints: 449, IsActive: true, CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
		{FirstName: "Olga", Email: "olga@example.com", Role: model.RoleOrganizer, CreatedAt: time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteUsersCSV(&buf, users))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Name,Email,Role,Phone,City,Loyalty Points,Joined Date,Status", lines[0])
	assert.Equal(t, "Ann Perera,ann@example.com,CUSTOMER,,Colombo,449,2026-01-02,Active", lines[1])
	assert.Equal(t, "Olga,olga@example.com,ORGANIZER,,,0,2026-01-03,Locked", lines[2])
}

func TestReportService_FromBookings(t *testing.T) {
	f := newBookingFixture(t, 0)
	eventID := f.event(t, 10, 10)
	ctx := context.Background()

	for _, n := range []int{1, 2} {
		_, err := f.svc.Book(ctx, f.customer, BookingRequest{EventID: eventID, NumberOfTickets: n})
		require.NoError(t, err)
	}
	reports := NewReportService(f.svc.Repos.Events, f.svc.Repos.Users, f.svc.Repos.Bookings)

	d, err := reports.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, d.TotalEvents)
	assert.Equal(t, 2, d.TotalUsers)
	assert.Equal(t, 2, d.TotalBookings)
	assert.Equal(t, "7500.00", d.TotalRevenue.StringFixed(2))
	assert.Len(t, d.RecentBookings, 2)

	sales, err := reports.EventSales(ctx, eventID, f.organizer, false)
	require.NoError(t, err)
	assert.Equal(t, 3, sales.TicketsSold)
	assert.Equal(t, "Jazz Night", sales.Event.Name)

	_, err = reports.EventSales(ctx, eventID, f.customer, false)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	all, err := reports.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all.Events, 1)
	assert.Len(t, all.Users, 2)
	assert.Len(t, all.Sales.Bookings, 2)
}
