// Package queue defines message payloads exchanged over the message broker
// and the consumer that processes them.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BookingConfirmedQueue is the durable queue booking confirmations are
// published to.
const BookingConfirmedQueue = "booking.confirmed"

// BookingConfirmedEvent is published when a booking commits. It carries
// enough information for consumers to render tickets, log, notify or
// trigger analytics without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID           uint64          `json:"booking_id"`
	UserID              uint64          `json:"user_id"`
	CustomerEmail       string          `json:"customer_email"`
	EventID             uint64          `json:"event_id"`
	EventName           string          `json:"event_name"`
	VenueName           string          `json:"venue_name"`
	StartsAt            time.Time       `json:"starts_at"`
	TicketNumbers       []string        `json:"tickets"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	DiscountAmount      decimal.Decimal `json:"discount_amount"`
	FinalAmount         decimal.Decimal `json:"final_amount"`
	PromotionCode       string          `json:"promotion_code,omitempty"`
	LoyaltyPointsUsed   int             `json:"loyalty_points_used"`
	LoyaltyPointsEarned int             `json:"loyalty_points_earned"`
	TransactionID       string          `json:"transaction_id"`
	ConfirmedAt         time.Time       `json:"confirmed_at"`
}

// DecodeBookingConfirmed parses a delivery body.
func DecodeBookingConfirmed(body []byte) (BookingConfirmedEvent, error) {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.BookingID == 0 {
		return ev, fmt.Errorf("unmarshal: missing booking_id")
	}
	return ev, nil
}
