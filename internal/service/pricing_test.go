package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/star-events-ticketing/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func promo(pct string, maxDiscount *string, now time.Time) *model.Promotion {
	p := &model.Promotion{
		Code:               "SUMMER15",
		DiscountPercentage: dec(pct),
		StartDate:          now.Add(-time.Hour),
		EndDate:            now.Add(time.Hour),
		IsActive:           true,
	}
	if maxDiscount != nil {
		m := dec(*maxDiscount)
		p.MaxDiscountAmount = &m
	}
	return p
}

func TestCalculate_PromotionCapAndLoyalty(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	capAmount := "500"

	q, err := Calculate(QuoteInput{
		TicketPrice:      dec("2500"),
		NumberOfTickets:  2,
		Promotion:        promo("15", &capAmount, now),
		UseLoyaltyPoints: true,
		LoyaltyBalance:   80,
		Now:              now,
	})
	require.NoError(t, err)

	assert.True(t, q.TotalAmount.Equal(dec("5000")))
	assert.True(t, q.PromotionDiscount.Equal(dec("500")), "750 is capped at 500")
	assert.True(t, q.LoyaltyDiscount.Equal(dec("8")))
	assert.True(t, q.DiscountAmount.Equal(dec("508")))
	assert.True(t, q.FinalAmount.Equal(dec("4492")))
	assert.True(t, q.PromotionApplied)
	assert.Equal(t, "SUMMER15", q.PromotionCode)
	assert.Equal(t, 80, q.PointsUsed)
	assert.Equal(t, 449, q.PointsEarned)
}

func TestCalculate_NoDiscounts(t *testing.T) {
	q, err := Calculate(QuoteInput{TicketPrice: dec("1250.50"), NumberOfTickets: 3, Now: time.Now()})
	require.NoError(t, err)
	assert.True(t, q.TotalAmount.Equal(dec("3751.50")))
	assert.True(t, q.DiscountAmount.IsZero())
	assert.True(t, q.FinalAmount.Equal(q.TotalAmount))
	assert.False(t, q.PromotionApplied)
	assert.Equal(t, 375, q.PointsEarned)
}

func TestCalculate_PercentageRoundedToCents(t *testing.T) {
	now := time.Now()
	q, err := Calculate(QuoteInput{
		TicketPrice:     dec("33.33"),
		NumberOfTickets: 1,
		Promotion:       promo("12.5", nil, now),
		Now:             now,
	})
	require.NoError(t, err)
	// 33.33 * 12.5% = 4.16625
	assert.Equal(t, "4.17", q.PromotionDiscount.StringFixed(2))
	assert.Equal(t, "29.16", q.FinalAmount.StringFixed(2))
}

func TestCalculate_UnusablePromotionIgnored(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expired := promo("20", nil, now)
	expired.EndDate = now.Add(-time.Minute)

	inactive := promo("20", nil, now)
	inactive.IsActive = false

	maxed := promo("20", nil, now)
	maxed.MaxUses = new(int)
	*maxed.MaxUses = 3
	maxed.CurrentUses = 3

	for name, p := range map[string]*model.Promotion{"expired": expired, "inactive": inactive, "maxed": maxed} {
		t.Run(name, func(t *testing.T) {
			q, err := Calculate(QuoteInput{TicketPrice: dec("100"), NumberOfTickets: 1, Promotion: p, Now: now})
			require.NoError(t, err)
			assert.False(t, q.PromotionApplied)
			assert.Empty(t, q.PromotionCode)
			assert.True(t, q.FinalAmount.Equal(dec("100")))
		})
	}
}

func TestCalculate_LoyaltyLimitedByRemainingAmount(t *testing.T) {
	q, err := Calculate(QuoteInput{
		TicketPrice:      dec("5"),
		NumberOfTickets:  1,
		UseLoyaltyPoints: true,
		LoyaltyBalance:   1000,
		Now:              time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, 50, q.PointsUsed)
	assert.True(t, q.FinalAmount.IsZero())
	assert.Equal(t, 0, q.PointsEarned)
}

func TestCalculate_LoyaltyIgnoredWhenNotRequested(t *testing.T) {
	q, err := Calculate(QuoteInput{TicketPrice: dec("100"), NumberOfTickets: 1, LoyaltyBalance: 500, Now: time.Now()})
	require.NoError(t, err)
	assert.Zero(t, q.PointsUsed)
	assert.True(t, q.LoyaltyDiscount.IsZero())
}

func TestCalculate_FullPromotionLeavesNothingToRedeem(t *testing.T) {
	now := time.Now()
	q, err := Calculate(QuoteInput{
		TicketPrice:      dec("40"),
		NumberOfTickets:  2,
		Promotion:        promo("100", nil, now),
		UseLoyaltyPoints: true,
		LoyaltyBalance:   30,
		Now:              now,
	})
	require.NoError(t, err)
	assert.Zero(t, q.PointsUsed)
	assert.True(t, q.FinalAmount.IsZero())
	assert.False(t, q.FinalAmount.IsNegative())
}

func TestCalculate_EarnedPointsFloor(t *testing.T) {
	q, err := Calculate(QuoteInput{TicketPrice: dec("19.99"), NumberOfTickets: 1, Now: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, 1, q.PointsEarned)
}

func TestCalculate_InvalidTicketCount(t *testing.T) {
	for _, n := range []int{0, -1, MaxTicketsPerBooking + 1} {
		_, err := Calculate(QuoteInput{TicketPrice: dec("10"), NumberOfTickets: n})
		assert.ErrorIs(t, err, ErrInvalidTicketCount, "count %d", n)
	}
	_, err := Calculate(QuoteInput{TicketPrice: dec("10"), NumberOfTickets: MaxTicketsPerBooking})
	assert.NoError(t, err)
}
