package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.BookingCompleted(2, decimal.RequireFromString("4492"), "SUMMER15", 80, 449, 15*time.Millisecond)
	r.BookingCompleted(1, decimal.RequireFromString("2500.50"), "", 0, 250, 5*time.Millisecond)
	r.BookingFailed("sold_out")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.bookings.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.bookings.WithLabelValues("sold_out")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.ticketsSold))
	assert.InDelta(t, 6992.5, testutil.ToFloat64(r.revenue), 0.001)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.promotions.WithLabelValues("SUMMER15")))
	assert.Equal(t, 80.0, testutil.ToFloat64(r.pointsRedeemed))
	assert.Equal(t, 699.0, testutil.ToFloat64(r.pointsEarned))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.BookingCompleted(1, decimal.NewFromInt(10), "X", 0, 1, time.Millisecond)
		r.BookingFailed("invalid_count")
	})
}
