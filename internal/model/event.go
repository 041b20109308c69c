package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is a ticketed happening at a venue, owned by an organizer.
//
// AvailableTickets always equals TotalTickets minus the tickets held by
// completed bookings and is never negative.
type Event struct {
	ID               uint64          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Category         string          `json:"category"`
	StartsAt         time.Time       `json:"starts_at"`
	VenueID          uint64          `json:"venue_id"`
	OrganizerID      uint64          `json:"organizer_id"`
	TicketPrice      decimal.Decimal `json:"ticket_price"`
	TotalTickets     int             `json:"total_tickets"`
	AvailableTickets int             `json:"available_tickets"`
	ImageURL         string          `json:"image_url,omitempty"`
	IsActive         bool            `json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// SoldOut reports whether no tickets remain.
func (e Event) SoldOut() bool { return e.AvailableTickets <= 0 }

// OnSale reports whether the event can still be booked at now: it must be
// active and not yet started.
func (e Event) OnSale(now time.Time) bool { return e.IsActive && e.StartsAt.After(now) }

// EventListing is an event joined with the names shown in listings and
// reports.
type EventListing struct {
	Event
	VenueName     string `json:"venue_name"`
	VenueCity     string `json:"venue_city"`
	OrganizerName string `json:"organizer_name"`
}

// EventFilter narrows public event searches. Zero values disable a filter.
type EventFilter struct {
	Category string
	City     string
	Date     *time.Time // calendar day in UTC
	From     time.Time  // events starting before this instant are hidden
	Page     int
	PageSize int
}
