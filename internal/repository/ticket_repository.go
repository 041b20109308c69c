package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/star-events-ticketing/internal/model"
)

const ticketColumns = `id, booking_id, ticket_number, qr_code, qr_code_image_path, is_used, used_at, created_at`

type TicketRepo struct {
	db *sql.DB
}

func NewTicketRepo(db *sql.DB) *TicketRepo {
	return &TicketRepo{db: db}
}

func scanTicket(s scanner) (*model.Ticket, error) {
	var (
		t      model.Ticket
		img    sql.NullString
		usedAt sql.NullTime
	)
	if err := s.Scan(&t.ID, &t.BookingID, &t.TicketNumber, &t.QRCode, &img, &t.IsUsed, &usedAt, &t.CreatedAt); err != nil {
		return nil, err
	}
	if img.Valid {
		p := img.String
		t.QRCodeImagePath = &p
	}
	if usedAt.Valid {
		u := usedAt.Time
		t.UsedAt = &u
	}
	return &t, nil
}

// CreateBulkTx inserts the tickets of one booking and sets their IDs.
func (r *TicketRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, tickets []model.Ticket) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tickets (booking_id, ticket_number, qr_code, is_used, created_at) VALUES (?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i := range tickets {
		t := &tickets[i]
		res, err := stmt.ExecContext(ctx, t.BookingID, t.TicketNumber, t.QRCode, false, t.CreatedAt.UTC())
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		t.ID = uint64(id)
	}
	return nil
}

// ListByBooking returns the tickets of a booking in issue order.
func (r *TicketRepo) ListByBooking(ctx context.Context, bookingID uint64) ([]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE booking_id = ? ORDER BY id", bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	return t, err
}

func (r *TicketRepo) GetByNumber(ctx context.Context, number string) (*model.Ticket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE ticket_number = ?", number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	return t, err
}

// SetImagePath records where the rendered QR code PNG is served from.
func (r *TicketRepo) SetImagePath(ctx context.Context, id uint64, path string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE tickets SET qr_code_image_path = ? WHERE id = ?", path, id)
	return affectedOr(res, err, ErrTicketNotFound)
}

// MarkUsed flags a ticket as scanned at the gate. It returns false when the
// ticket had already been used.
func (r *TicketRepo) MarkUsed(ctx context.Context, id uint64, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, "UPDATE tickets SET is_used = 1, used_at = ? WHERE id = ? AND is_used = 0", at.UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
