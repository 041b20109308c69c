package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/star-events-ticketing/internal/model"
)

const eventColumns = `e.id, e.name, e.description, e.category, e.starts_at, e.venue_id, e.organizer_id,
	e.ticket_price, e.total_tickets, e.available_tickets, e.image_url, e.is_active, e.created_at, e.updated_at`

const listingFrom = ` FROM events e
	JOIN venues v ON v.id = e.venue_id
	JOIN users u ON u.id = e.organizer_id`

// EventRepo encapsulates queries on the events table.
type EventRepo struct {
	db *sql.DB
}

func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{db: db}
}

func scanEventInto(e *model.Event, extra ...any) []any {
	return append([]any{&e.ID, &e.Name, &e.Description, &e.Category, &e.StartsAt, &e.VenueID, &e.OrganizerID,
		&e.TicketPrice, &e.TotalTickets, &e.AvailableTickets, &e.ImageURL, &e.IsActive, &e.CreatedAt, &e.UpdatedAt}, extra...)
}

func scanListing(s scanner) (*model.EventListing, error) {
	var (
		l           model.EventListing
		first, last string
	)
	if err := s.Scan(scanEventInto(&l.Event, &l.VenueName, &l.VenueCity, &first, &last)...); err != nil {
		return nil, err
	}
	l.OrganizerName = strings.TrimSpace(first + " " + last)
	return &l, nil
}

const listingSelect = "SELECT " + eventColumns + ", v.name, v.city, u.first_name, u.last_name" + listingFrom

func (r *EventRepo) queryListings(ctx context.Context, q string, args ...any) ([]model.EventListing, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.EventListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// Create inserts an event with every ticket available.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	now := time.Now().UTC()
	e.AvailableTickets = e.TotalTickets
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO events (name, description, category, starts_at, venue_id, organizer_id, ticket_price,
			total_tickets, available_tickets, image_url, is_active, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.Name, e.Description, e.Category, e.StartsAt.UTC(), e.VenueID, e.OrganizerID, e.TicketPrice,
		e.TotalTickets, e.AvailableTickets, e.ImageURL, e.IsActive, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	e.CreatedAt, e.UpdatedAt = now, now
	return nil
}

// GetByID fetches an event regardless of its active flag.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	return r.getByID(ctx, r.db, id)
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *EventRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Event, error) {
	return r.getByID(ctx, tx, id)
}

func (r *EventRepo) getByID(ctx context.Context, q querier, id uint64) (*model.Event, error) {
	var e model.Event
	err := q.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events e WHERE e.id = ?", id).Scan(scanEventInto(&e)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetListing returns an event with its venue and organizer names.
func (r *EventRepo) GetListing(ctx context.Context, id uint64) (*model.EventListing, error) {
	l, err := scanListing(r.db.QueryRowContext(ctx, listingSelect+" WHERE e.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	return l, err
}

// Search lists active events starting at or after f.From, narrowed by the
// optional category, city and calendar-day filters. It returns the page and
// the total number of matches.
func (r *EventRepo) Search(ctx context.Context, f model.EventFilter) ([]model.EventListing, int64, error) {
	where := []string{"e.is_active = 1", "e.starts_at >= ?"}
	args := []any{f.From.UTC()}
	if f.Category != "" {
		where = append(where, "e.category = ?")
		args = append(args, f.Category)
	}
	if f.City != "" {
		where = append(where, "v.city = ?")
		args = append(args, f.City)
	}
	if f.Date != nil {
		day := time.Date(f.Date.Year(), f.Date.Month(), f.Date.Day(), 0, 0, 0, 0, time.UTC)
		where = append(where, "e.starts_at >= ?", "e.starts_at < ?")
		args = append(args, day, day.Add(24*time.Hour))
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+listingFrom+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, size := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	pageArgs := append(append([]any{}, args...), size, (page-1)*size)
	items, err := r.queryListings(ctx, listingSelect+cond+" ORDER BY e.starts_at, e.id LIMIT ? OFFSET ?", pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListByOrganizer returns every event owned by organizerID, soonest first.
func (r *EventRepo) ListByOrganizer(ctx context.Context, organizerID uint64) ([]model.EventListing, error) {
	return r.queryListings(ctx, listingSelect+" WHERE e.organizer_id = ? ORDER BY e.starts_at, e.id", organizerID)
}

// ListAll returns every event including inactive and past ones.
func (r *EventRepo) ListAll(ctx context.Context) ([]model.EventListing, error) {
	return r.queryListings(ctx, listingSelect+" ORDER BY e.starts_at DESC, e.id DESC")
}

// Categories returns the distinct categories of active events.
func (r *EventRepo) Categories(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "SELECT DISTINCT category FROM events WHERE is_active = 1 ORDER BY category")
}

// Cities returns the distinct cities of active venues.
func (r *EventRepo) Cities(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "SELECT DISTINCT city FROM venues WHERE is_active = 1 ORDER BY city")
}

func (r *EventRepo) distinct(ctx context.Context, q string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Update writes the editable fields of e. Unless manageAll is set the
// event must belong to actorID (ErrForbidden otherwise) and keeps its
// organizer. When the ticket total changes, the available count is
// recomputed from completed bookings; a total below the tickets already
// sold returns ErrConflict.
func (r *EventRepo) Update(ctx context.Context, e *model.Event, actorID uint64, manageAll bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer rollback(tx, &committed)

	current, err := r.getByID(ctx, tx, e.ID)
	if err != nil {
		return err
	}
	if !manageAll {
		if current.OrganizerID != actorID {
			return ErrForbidden
		}
		e.OrganizerID = current.OrganizerID
	}
	if e.OrganizerID == 0 {
		e.OrganizerID = current.OrganizerID
	}

	e.AvailableTickets = current.AvailableTickets
	if e.TotalTickets != current.TotalTickets {
		sold, err := sumCompletedTickets(ctx, tx, e.ID)
		if err != nil {
			return err
		}
		if e.TotalTickets < sold {
			return ErrConflict
		}
		e.AvailableTickets = e.TotalTickets - sold
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE events SET name = ?, description = ?, category = ?, starts_at = ?, venue_id = ?, organizer_id = ?,
			ticket_price = ?, total_tickets = ?, available_tickets = ?, image_url = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		e.Name, e.Description, e.Category, e.StartsAt.UTC(), e.VenueID, e.OrganizerID,
		e.TicketPrice, e.TotalTickets, e.AvailableTickets, e.ImageURL, e.IsActive, now, e.ID)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	e.CreatedAt, e.UpdatedAt = current.CreatedAt, now
	return nil
}

// Delete removes an event. Unless manageAll is set the event must belong
// to actorID. Events with bookings are kept and ErrConflict is returned.
func (r *EventRepo) Delete(ctx context.Context, id, actorID uint64, manageAll bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer rollback(tx, &committed)

	var organizerID uint64
	if err := tx.QueryRowContext(ctx, "SELECT organizer_id FROM events WHERE id = ?", id).Scan(&organizerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		return err
	}
	if !manageAll && organizerID != actorID {
		return ErrForbidden
	}
	var bookings int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings WHERE event_id = ?", id).Scan(&bookings); err != nil {
		return err
	}
	if bookings > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ReserveTicketsTx decrements the available count by n only if at least n
// tickets remain, in a single conditional UPDATE. It returns false when
// the event is inactive, has started by now or is short of tickets;
// concurrent bookings can never drive the count below zero.
func (r *EventRepo) ReserveTicketsTx(ctx context.Context, tx *sql.Tx, id uint64, n int, now time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE events SET available_tickets = available_tickets - ?, updated_at = ?
		 WHERE id = ? AND is_active = 1 AND starts_at > ? AND available_tickets >= ?`,
		n, time.Now().UTC(), id, now.UTC(), n)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Count returns the number of events.
func (r *EventRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n)
	return n, err
}

func sumCompletedTickets(ctx context.Context, q querier, eventID uint64) (int, error) {
	var sold int
	err := q.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(number_of_tickets), 0) FROM bookings WHERE event_id = ? AND payment_status = ?",
		eventID, model.PaymentCompleted).Scan(&sold)
	return sold, err
}
