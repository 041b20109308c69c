package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus tracks the payment lifecycle of a booking.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
	PaymentFailed    PaymentStatus = "Failed"
)

// Valid reports whether s is a known status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed:
		return true
	}
	return false
}

func (s PaymentStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid payment status %q", string(s))
	}
	return string(s), nil
}

func (s *PaymentStatus) Scan(src any) error {
	var v PaymentStatus
	switch t := src.(type) {
	case string:
		v = PaymentStatus(t)
	case []byte:
		v = PaymentStatus(t)
	default:
		return fmt.Errorf("cannot scan %T into PaymentStatus", src)
	}
	if !v.Valid() {
		return fmt.Errorf("invalid payment status %q", string(v))
	}
	*s = v
	return nil
}

// Booking is one purchase of tickets for an event.
//
// Amount invariants: 0 <= FinalAmount <= TotalAmount and
// FinalAmount = max(0, TotalAmount - DiscountAmount).
type Booking struct {
	ID                   uint64          `json:"id"`
	UserID               uint64          `json:"user_id"`
	EventID              uint64          `json:"event_id"`
	NumberOfTickets      int             `json:"number_of_tickets"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	DiscountAmount       decimal.Decimal `json:"discount_amount"`
	FinalAmount          decimal.Decimal `json:"final_amount"`
	PaymentStatus        PaymentStatus   `json:"payment_status"`
	PaymentTransactionID string          `json:"payment_transaction_id,omitempty"`
	PaymentMethod        string          `json:"payment_method,omitempty"`
	PromotionCode        *string         `json:"promotion_code,omitempty"`
	LoyaltyPointsUsed    int             `json:"loyalty_points_used"`
	LoyaltyPointsEarned  int             `json:"loyalty_points_earned"`
	BookingDate          time.Time       `json:"booking_date"`
}

// BookingDetail is a booking joined with the event, venue and customer
// fields shown on confirmations and reports.
type BookingDetail struct {
	Booking
	EventName     string    `json:"event_name"`
	EventStartsAt time.Time `json:"event_starts_at"`
	VenueName     string    `json:"venue_name"`
	VenueAddress  string    `json:"venue_address"`
	VenueCity     string    `json:"venue_city"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	Tickets       []Ticket  `json:"tickets,omitempty"`
}
