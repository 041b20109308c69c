package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/star-events-ticketing/internal/model"
	"github.com/iliyamo/star-events-ticketing/internal/repository"
)

const recentBookingsOnDashboard = 10

// Dashboard is the admin overview.
type Dashboard struct {
	TotalEvents    int                   `json:"total_events"`
	TotalUsers     int                   `json:"total_users"`
	TotalBookings  int                   `json:"total_bookings"`
	TotalRevenue   decimal.Decimal       `json:"total_revenue"`
	RecentBookings []model.BookingDetail `json:"recent_bookings"`
}

// SalesReport lists completed bookings and their revenue.
type SalesReport struct {
	Bookings     []model.BookingDetail `json:"bookings"`
	TotalRevenue decimal.Decimal       `json:"total_revenue"`
	TicketsSold  int                   `json:"tickets_sold"`
}

// EventSalesReport is the organizer's view of one event's sales.
type EventSalesReport struct {
	Event *model.Event `json:"event"`
	SalesReport
}

// Reports bundles the admin report payloads.
type Reports struct {
	Sales  SalesReport          `json:"sales"`
	Events []model.EventListing `json:"events"`
	Users  []model.User         `json:"users"`
}

type ReportService struct {
	Events   *repository.EventRepo
	Users    *repository.UserRepo
	Bookings *repository.BookingRepo
}

func NewReportService(events *repository.EventRepo, users *repository.UserRepo, bookings *repository.BookingRepo) *ReportService {
	return &ReportService{Events: events, Users: users, Bookings: bookings}
}

func (s *ReportService) Dashboard(ctx context.Context) (*Dashboard, error) {
	var (
		d   Dashboard
		err error
	)
	if d.TotalEvents, err = s.Events.Count(ctx); err != nil {
		return nil, err
	}
	if d.TotalUsers, err = s.Users.Count(ctx); err != nil {
		return nil, err
	}
	if d.TotalBookings, err = s.Bookings.Count(ctx); err != nil {
		return nil, err
	}
	if d.TotalRevenue, err = s.Bookings.Revenue(ctx); err != nil {
		return nil, err
	}
	if d.RecentBookings, err = s.Bookings.Recent(ctx, recentBookingsOnDashboard); err != nil {
		return nil, err
	}
	return &d, nil
}

// Sales returns completed bookings, newest first.
func (s *ReportService) Sales(ctx context.Context) (*SalesReport, error) {
	bookings, err := s.Bookings.ListCompleted(ctx)
	if err != nil {
		return nil, err
	}
	r := summarize(bookings)
	return &r, nil
}

func (s *ReportService) EventsReport(ctx context.Context) ([]model.EventListing, error) {
	return s.Events.ListAll(ctx)
}

func (s *ReportService) UsersReport(ctx context.Context) ([]model.User, error) {
	return s.Users.List(ctx)
}

// All gathers the three admin reports.
func (s *ReportService) All(ctx context.Context) (*Reports, error) {
	sales, err := s.Sales(ctx)
	if err != nil {
		return nil, err
	}
	events, err := s.EventsReport(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.UsersReport(ctx)
	if err != nil {
		return nil, err
	}
	return &Reports{Sales: *sales, Events: events, Users: users}, nil
}

// EventSales returns the completed bookings of one event. Organizers may
// only read their own events unless manageAll is set.
func (s *ReportService) EventSales(ctx context.Context, eventID, actorID uint64, manageAll bool) (*EventSalesReport, error) {
	ev, err := s.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !manageAll && ev.OrganizerID != actorID {
		return nil, repository.ErrForbidden
	}
	bookings, err := s.Bookings.ListCompletedByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &EventSalesReport{Event: ev, SalesReport: summarize(bookings)}, nil
}

func summarize(bookings []model.BookingDetail) SalesReport {
	r := SalesReport{Bookings: bookings, TotalRevenue: decimal.Zero}
	for _, b := range bookings {
		r.TotalRevenue = r.TotalRevenue.Add(b.FinalAmount)
		r.TicketsSold += b.NumberOfTickets
	}
	return r
}

// ReportFileName names an exported report, e.g. Sales_Report_20250101_093000.csv.
func ReportFileName(kind string, at time.Time) string {
	return fmt.Sprintf("%s_Report_%s.csv", kind, at.Format("20060102_150405"))
}

const (
	csvDate = "2006-01-02"
	csvTime = "15:04:05"
)

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func WriteSalesCSV(w io.Writer, r *SalesReport) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Booking ID", "Customer Name", "Email", "Event Name", "Booking Date", "Tickets", "Total Amount", "Discount Amount", "Final Amount"})
	for _, b := range r.Bookings {
		_ = cw.Write([]string{
			strconv.FormatUint(b.ID, 10),
			b.CustomerName,
			b.CustomerEmail,
			b.EventName,
			b.BookingDate.Format(csvDate),
			strconv.Itoa(b.NumberOfTickets),
			money(b.TotalAmount),
			money(b.DiscountAmount),
			money(b.FinalAmount),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	// the blank separator line is not a record
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	_ = cw.Write([]string{"Total Revenue", money(r.TotalRevenue)})
	cw.Flush()
	return cw.Error()
}

func WriteEventsCSV(w io.Writer, events []model.EventListing) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Event Name", "Event Date", "Event Time", "Venue", "Category", "Ticket Price", "Total Tickets", "Available Tickets", "Status", "Organizer"})
	for _, e := range events {
		status := "Inactive"
		if e.IsActive {
			status = "Active"
		}
		_ = cw.Write([]string{
			e.Name,
			e.StartsAt.Format(csvDate),
			e.StartsAt.Format(csvTime),
			e.VenueName,
			e.Category,
			money(e.TicketPrice),
			strconv.Itoa(e.TotalTickets),
			strconv.Itoa(e.AvailableTickets),
			status,
			e.OrganizerName,
		})
	}
	cw.Flush()
	return cw.Error()
}

func WriteUsersCSV(w io.Writer, users []model.User) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Name", "Email", "Role", "Phone", "City", "Loyalty Points", "Joined Date", "Status"})
	for _, u := range users {
		status := "Active"
		if !u.IsActive {
			status = "Locked"
		}
		_ = cw.Write([]string{
			u.FullName(),
			u.Email,
			u.Role.String(),
			u.Phone,
			u.City,
			strconv.Itoa(u.LoyaltyPoints),
			u.CreatedAt.Format(csvDate),
			status,
		})
	}
	cw.Flush()
	return cw.Error()
}
