// Package metrics exposes Prometheus instruments for the booking flow.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Recorder groups the booking instruments. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	bookings         *prometheus.CounterVec
	ticketsSold      prometheus.Counter
	revenue          prometheus.Counter
	promotions       *prometheus.CounterVec
	pointsRedeemed   prometheus.Counter
	pointsEarned     prometheus.Counter
	bookingDurations prometheus.Histogram
}

// New registers the instruments on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		bookings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bookings_total",
			Help: "Booking attempts by outcome",
		}, []string{"outcome"}),
		ticketsSold: f.NewCounter(prometheus.CounterOpts{
			Name: "tickets_sold_total",
			Help: "Tickets issued by completed bookings",
		}),
		revenue: f.NewCounter(prometheus.CounterOpts{
			Name: "booking_revenue_total",
			Help: "Sum of final amounts of completed bookings",
		}),
		promotions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "promotion_redemptions_total",
			Help: "Bookings that applied a promotion code",
		}, []string{"code"}),
		pointsRedeemed: f.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_points_redeemed_total",
			Help: "Loyalty points spent on bookings",
		}),
		pointsEarned: f.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_points_earned_total",
			Help: "Loyalty points credited by bookings",
		}),
		bookingDurations: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "booking_duration_seconds",
			Help:    "Time spent in the booking transaction",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
	}
}

// BookingCompleted records a committed booking.
func (r *Recorder) BookingCompleted(tickets int, final decimal.Decimal, promotionCode string, pointsUsed, pointsEarned int, took time.Duration) {
	if r == nil {
		return
	}
	r.bookings.WithLabelValues("completed").Inc()
	r.ticketsSold.Add(float64(tickets))
	r.revenue.Add(final.InexactFloat64())
	if promotionCode != "" {
		r.promotions.WithLabelValues(promotionCode).Inc()
	}
	r.pointsRedeemed.Add(float64(pointsUsed))
	r.pointsEarned.Add(float64(pointsEarned))
	r.bookingDurations.Observe(took.Seconds())
}

// BookingFailed records a rejected booking; reason is a short label such
// as "sold_out".
func (r *Recorder) BookingFailed(reason string) {
	if r == nil {
		return
	}
	r.bookings.WithLabelValues(reason).Inc()
}
