package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/star-events-ticketing/internal/model"
)

const bookingColumns = `b.id, b.user_id, b.event_id, b.number_of_tickets, b.total_amount, b.discount_amount, b.final_amount,
	b.payment_status, b.payment_transaction_id, b.payment_method, b.promotion_code,
	b.loyalty_points_used, b.loyalty_points_earned, b.booking_date`

const bookingDetailSelect = "SELECT " + bookingColumns + `,
	e.name, e.starts_at, v.name, v.address, v.city, u.first_name, u.last_name, u.email
	FROM bookings b
	JOIN events e ON e.id = b.event_id
	JOIN venues v ON v.id = e.venue_id
	JOIN users u ON u.id = b.user_id`

// BookingRepo reads and writes bookings. Writes only happen inside the
// booking transaction, hence the *Tx methods.
type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

func scanBookingDetail(s scanner) (*model.BookingDetail, error) {
	var (
		d           model.BookingDetail
		promo       sql.NullString
		first, last string
	)
	err := s.Scan(&d.ID, &d.UserID, &d.EventID, &d.NumberOfTickets, &d.TotalAmount, &d.DiscountAmount, &d.FinalAmount,
		&d.PaymentStatus, &d.PaymentTransactionID, &d.PaymentMethod, &promo,
		&d.LoyaltyPointsUsed, &d.LoyaltyPointsEarned, &d.BookingDate,
		&d.EventName, &d.EventStartsAt, &d.VenueName, &d.VenueAddress, &d.VenueCity, &first, &last, &d.CustomerEmail)
	if err != nil {
		return nil, err
	}
	if promo.Valid {
		code := promo.String
		d.PromotionCode = &code
	}
	d.CustomerName = strings.TrimSpace(first + " " + last)
	return &d, nil
}

func (r *BookingRepo) queryDetails(ctx context.Context, q string, args ...any) ([]model.BookingDetail, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.BookingDetail
	for rows.Next() {
		d, err := scanBookingDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// CreateTx inserts b inside tx and sets its ID.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (user_id, event_id, number_of_tickets, total_amount, discount_amount, final_amount,
			payment_status, payment_transaction_id, payment_method, promotion_code,
			loyalty_points_used, loyalty_points_earned, booking_date)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.UserID, b.EventID, b.NumberOfTickets, b.TotalAmount, b.DiscountAmount, b.FinalAmount,
		b.PaymentStatus, b.PaymentTransactionID, b.PaymentMethod, b.PromotionCode,
		b.LoyaltyPointsUsed, b.LoyaltyPointsEarned, b.BookingDate.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// CompletePaymentTx moves a pending booking to Completed and records the
// payment reference.
func (r *BookingRepo) CompletePaymentTx(ctx context.Context, tx *sql.Tx, id uint64, transactionID, method string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET payment_status = ?, payment_transaction_id = ?, payment_method = ?
		 WHERE id = ? AND payment_status = ?`,
		model.PaymentCompleted, transactionID, method, id, model.PaymentPending)
	return affectedOr(res, err, ErrBookingNotFound)
}

// GetDetail returns a booking with its event, venue and customer fields.
func (r *BookingRepo) GetDetail(ctx context.Context, id uint64) (*model.BookingDetail, error) {
	d, err := scanBookingDetail(r.db.QueryRowContext(ctx, bookingDetailSelect+" WHERE b.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return d, err
}

// ListByUser returns a customer's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.BookingDetail, error) {
	return r.queryDetails(ctx, bookingDetailSelect+" WHERE b.user_id = ? ORDER BY b.booking_date DESC, b.id DESC", userID)
}

// ListUpcomingByUser returns completed bookings for events starting at or
// after now, soonest first.
func (r *BookingRepo) ListUpcomingByUser(ctx context.Context, userID uint64, now time.Time) ([]model.BookingDetail, error) {
	return r.queryDetails(ctx,
		bookingDetailSelect+" WHERE b.user_id = ? AND b.payment_status = ? AND e.starts_at >= ? ORDER BY e.starts_at, b.id",
		userID, model.PaymentCompleted, now.UTC())
}

// ListCompleted returns every completed booking, newest first. It feeds the
// sales report.
func (r *BookingRepo) ListCompleted(ctx context.Context) ([]model.BookingDetail, error) {
	return r.queryDetails(ctx,
		bookingDetailSelect+" WHERE b.payment_status = ? ORDER BY b.booking_date DESC, b.id DESC", model.PaymentCompleted)
}

// ListCompletedByEvent returns the completed bookings of one event.
func (r *BookingRepo) ListCompletedByEvent(ctx context.Context, eventID uint64) ([]model.BookingDetail, error) {
	return r.queryDetails(ctx,
		bookingDetailSelect+" WHERE b.event_id = ? AND b.payment_status = ? ORDER BY b.booking_date DESC, b.id DESC",
		eventID, model.PaymentCompleted)
}

// Recent returns the latest n bookings regardless of status.
func (r *BookingRepo) Recent(ctx context.Context, n int) ([]model.BookingDetail, error) {
	return r.queryDetails(ctx, bookingDetailSelect+" ORDER BY b.booking_date DESC, b.id DESC LIMIT ?", n)
}

// Count returns the number of bookings.
func (r *BookingRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings").Scan(&n)
	return n, err
}

// Revenue sums the final amount of completed bookings.
func (r *BookingRepo) Revenue(ctx context.Context) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.QueryRowContext(ctx,
		"SELECT SUM(final_amount) FROM bookings WHERE payment_status = ?", model.PaymentCompleted).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// SumCompletedTickets returns the tickets sold for an event.
func (r *BookingRepo) SumCompletedTickets(ctx context.Context, eventID uint64) (int, error) {
	return sumCompletedTickets(ctx, r.db, eventID)
}
