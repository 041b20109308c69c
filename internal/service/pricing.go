package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/star-events-ticketing/internal/model"
)

const (
	MinTicketsPerBooking = 1
	MaxTicketsPerBooking = 10

	// PointsPerCurrencyUnit is the loyalty redemption rate: 10 points buy
	// one unit of currency. Points are earned at one per 10 units paid.
	PointsPerCurrencyUnit = 10
)

var (
	hundred   = decimal.NewFromInt(100)
	pointRate = decimal.NewFromInt(PointsPerCurrencyUnit)
)

// QuoteInput carries everything the price calculation depends on.
type QuoteInput struct {
	TicketPrice      decimal.Decimal
	NumberOfTickets  int
	Promotion        *model.Promotion // nil when no code was supplied or it was not found
	UseLoyaltyPoints bool
	LoyaltyBalance   int
	Now              time.Time
}

// Quote is the outcome of the price calculation.
type Quote struct {
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PromotionDiscount decimal.Decimal `json:"promotion_discount"`
	LoyaltyDiscount   decimal.Decimal `json:"loyalty_discount"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	FinalAmount       decimal.Decimal `json:"final_amount"`
	PromotionApplied  bool            `json:"promotion_applied"`
	PromotionCode     string          `json:"promotion_code,omitempty"`
	PointsUsed        int             `json:"loyalty_points_used"`
	PointsEarned      int             `json:"loyalty_points_earned"`
}

// Calculate prices a booking:
//
//	total     = price × count
//	promotion = round2(total × pct / 100), capped at the promotion's maximum
//	points    = min(balance, floor((total − promotion) × 10))
//	discount  = promotion + points / 10
//	final     = max(0, total − discount)
//	earned    = floor(final / 10)
//
// The promotion only counts when it is usable at in.Now.
func Calculate(in QuoteInput) (Quote, error) {
	if in.NumberOfTickets < MinTicketsPerBooking || in.NumberOfTickets > MaxTicketsPerBooking {
		return Quote{}, ErrInvalidTicketCount
	}
	q := Quote{
		TotalAmount:       in.TicketPrice.Mul(decimal.NewFromInt(int64(in.NumberOfTickets))),
		PromotionDiscount: decimal.Zero,
		LoyaltyDiscount:   decimal.Zero,
	}

	if p := in.Promotion; p != nil && p.Usable(in.Now) {
		d := q.TotalAmount.Mul(p.DiscountPercentage).Div(hundred).Round(2)
		if p.MaxDiscountAmount != nil && d.GreaterThan(*p.MaxDiscountAmount) {
			d = *p.MaxDiscountAmount
		}
		if d.IsNegative() {
			d = decimal.Zero
		}
		q.PromotionDiscount = d
		q.PromotionApplied = true
		q.PromotionCode = p.Code
	}

	if in.UseLoyaltyPoints && in.LoyaltyBalance > 0 {
		remaining := q.TotalAmount.Sub(q.PromotionDiscount)
		if remaining.IsPositive() {
			redeemable := remaining.Mul(pointRate).Floor().IntPart()
			points := int64(in.LoyaltyBalance)
			if redeemable < points {
				points = redeemable
			}
			q.PointsUsed = int(points)
			q.LoyaltyDiscount = decimal.NewFromInt(points).Div(pointRate)
		}
	}

	q.DiscountAmount = q.PromotionDiscount.Add(q.LoyaltyDiscount)
	q.FinalAmount = decimal.Max(decimal.Zero, q.TotalAmount.Sub(q.DiscountAmount))
	q.PointsEarned = int(q.FinalAmount.Div(pointRate).Floor().IntPart())
	return q, nil
}
